package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// unsupportedAppLoad is what the chain reports when an application has not
// been instantiated on the caller's chain yet.
const unsupportedAppLoad = "Unsupported dynamic application load"

// classify maps chain error text onto domain sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), unsupportedAppLoad) && !errors.Is(err, domain.ErrAppNotInitialized) {
		return fmt.Errorf("contract: %s: %w: %w", op, domain.ErrAppNotInitialized, err)
	}
	return fmt.Errorf("contract: %s: %w", op, err)
}
