package model

import "time"

// AmountStats summarizes the amounts of a merchant code group.
type AmountStats struct {
	Min                    float64 `json:"min"`
	Max                    float64 `json:"max"`
	Mean                   float64 `json:"mean"`
	Median                 float64 `json:"median"`
	StdDev                 float64 `json:"std_dev"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
}

// TemporalPattern describes when in the month and week a code shows up.
type TemporalPattern struct {
	DominantDay *int    `json:"dominant_day,omitempty"`
	Description string  `json:"description"`
	DayOfMonth  [31]int `json:"day_of_month"` // index 0 is day 1
	DayOfWeek   [7]int  `json:"day_of_week"`  // index 0 is Sunday
}

// CodeStructure captures lexical features of a code and its raw variations.
type CodeStructure struct {
	DetectedPrefix   string   `json:"detected_prefix,omitempty"`
	SpecialChars     []string `json:"special_chars"`
	PaymentKeywords  []string `json:"payment_keywords"`
	LetterCount      int      `json:"letter_count"`
	DigitCount       int      `json:"digit_count"`
	SpaceCount       int      `json:"space_count"`
	HasAsterisk      bool     `json:"has_asterisk"`
	HasNumericSuffix bool     `json:"has_numeric_suffix"`
}

// CoOccurrence counts how often another code shares dates with this one.
type CoOccurrence struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// DateRange is the first and last date a code was seen.
type DateRange struct {
	First    time.Time `json:"first"`
	Last     time.Time `json:"last"`
	SpanDays int       `json:"span_days"`
}

// TransactionContext is the derived, never persisted, evidence about a code.
// It is snapshotted into a MerchantDiscovery when one is created.
type TransactionContext struct {
	DateRange            DateRange       `json:"date_range"`
	Code                 string          `json:"code"`
	TemporalPattern      TemporalPattern `json:"temporal_pattern"`
	RawVariations        []string        `json:"raw_variations"`
	CoOccurringCodes     []CoOccurrence  `json:"co_occurring_codes"`
	SampleTransactionIDs []string        `json:"sample_transaction_ids"`
	CodeStructure        CodeStructure   `json:"code_structure"`
	AmountStats          AmountStats     `json:"amount_stats"`
	OccurrenceCount      int             `json:"occurrence_count"`
	TotalAmount          float64         `json:"total_amount"`
}
