package domain

import "fmt"

// Dollars is a fixed-point dollar amount in millibucks (thousandths of a
// dollar). All ledger arithmetic is integral; there is no floating point
// anywhere in the money path.
type Dollars int64

// Buck is one dollar.
const Buck Dollars = 1000

// MaxIOUAmount bounds a single IOU. Purely a sanity limit on representable
// amounts, not a solvency check.
const MaxIOUAmount Dollars = 1_000_000 * Buck

// FromMillibucks builds a Dollars value from raw millibucks.
func FromMillibucks(m int64) Dollars {
	return Dollars(m)
}

// Millibucks returns the raw fixed-point value.
func (d Dollars) Millibucks() int64 {
	return int64(d)
}

// Float returns the display value in dollars.
func (d Dollars) Float() float64 {
	return float64(d) / float64(Buck)
}

func (d Dollars) String() string {
	neg := ""
	v := int64(d)
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%03d", neg, v/int64(Buck), v%int64(Buck))
}

// Price is a probability-denominated price in [0, Buck]: the cost in
// millibucks of a claim that pays one dollar.
type Price = Dollars

// ValidPrice reports whether p lies in [0, $1].
func ValidPrice(p Price) bool {
	return p >= 0 && p <= Buck
}

// Midpoint is the clearing price for a crossing bid/ask pair: the integer
// midpoint of buy and sell. Truncation keeps the result within [sell, buy]
// whenever buy >= sell.
func Midpoint(buy, sell Price) Price {
	return (buy + sell) / 2
}
