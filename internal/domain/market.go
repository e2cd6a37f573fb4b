package domain

// MarketCategory groups markets for browsing.
type MarketCategory string

const (
	CategoryCrypto        MarketCategory = "Crypto"
	CategoryPolitics      MarketCategory = "Politics"
	CategorySports        MarketCategory = "Sports"
	CategoryEntertainment MarketCategory = "Entertainment"
)

// Outcome indexes follow the market application: 0 is the first (yes)
// outcome, 1 the second (no).
const (
	OutcomeYes uint32 = 0
	OutcomeNo  uint32 = 1
)

// Market is immutable display data for one binary prediction market. The
// ID matches the market id of the on-chain market application.
type Market struct {
	ID            uint64         `json:"market_id"`
	Title         string         `json:"market_title"`
	Category      MarketCategory `json:"category"`
	OutcomeA      string         `json:"outcome_a"`
	OutcomeB      string         `json:"outcome_b"`
	YesPercentage int            `json:"yesPercentage"`
	NoPercentage  int            `json:"noPercentage"`
	Volume        string         `json:"volume"`
	Participants  int            `json:"participants"`
	Deadline      string         `json:"deadline"`
	MarketType    string         `json:"marketType"`
	Currency      string         `json:"currency"`
	MarketData    string         `json:"market_data"`
	Image         string         `json:"image"`
	FlashMarket   bool           `json:"isFlashMarket,omitempty"`
	Closed        bool           `json:"isClosed,omitempty"`
	CardStyle     string         `json:"cardStyle,omitempty"`
}

// OutcomeLabel returns the display label for an outcome index.
func (m Market) OutcomeLabel(outcome uint32) string {
	if outcome == OutcomeNo {
		return m.OutcomeB
	}
	return m.OutcomeA
}

// MarketDetails is the structured form of Market.MarketData.
type MarketDetails struct {
	Description string         `json:"description"`
	Outcomes    []string       `json:"outcomes"`
	Tags        []string       `json:"tags"`
	Sources     []MarketSource `json:"sources"`
}

// MarketSource is a resolution source link.
type MarketSource struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// OnChainMarket is the market application's own view of a market.
type OnChainMarket struct {
	ID           uint64 `json:"id"`
	Question     string `json:"question"`
	Image        string `json:"image"`
	OutcomeCount uint32 `json:"outcomeCount"`
	State        string `json:"state"`
}

// Share is a holding of one outcome of one market, in atomic units.
type Share struct {
	MarketID  uint64 `json:"market_id"`
	OutcomeID uint32 `json:"outcome_id"`
	Amount    Amount `json:"amount"`
}

// Holdings sums shares per binary outcome.
type Holdings struct {
	Yes Amount `json:"yes"`
	No  Amount `json:"no"`
}

// SumHoldings folds a share list into yes/no totals.
func SumHoldings(shares []Share) Holdings {
	h := Holdings{Yes: ZeroAmount(), No: ZeroAmount()}
	for _, s := range shares {
		switch s.OutcomeID {
		case OutcomeYes:
			h.Yes = h.Yes.Add(s.Amount)
		case OutcomeNo:
			h.No = h.No.Add(s.Amount)
		}
	}
	return h
}
