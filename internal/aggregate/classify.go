package aggregate

import "fmt"

// Bucket is a coarse financial-statement category.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketRevenue
	BucketCostOfGoodsSold
	BucketOperatingExpenses
	BucketAssets
	BucketEquity
	BucketLiabilities
)

var bucketNames = map[Bucket]string{
	BucketNone:              "none",
	BucketRevenue:           "revenue",
	BucketCostOfGoodsSold:   "cogs",
	BucketOperatingExpenses: "opex",
	BucketAssets:            "assets",
	BucketEquity:            "equity",
	BucketLiabilities:       "liabilities",
}

func (b Bucket) String() string {
	if name, ok := bucketNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Bucket(%d)", int(b))
}

// bucketRange is a half-open BAS account number range [From, To).
type bucketRange struct {
	From, To int
	Bucket   Bucket
}

// BAS chart of accounts ranges. Accounts outside them are not aggregated.
var basRanges = []bucketRange{
	{1000, 2000, BucketAssets},
	{2000, 2100, BucketEquity},
	{2100, 3000, BucketLiabilities},
	{3000, 4000, BucketRevenue},
	{4000, 5000, BucketCostOfGoodsSold},
	{5000, 8000, BucketOperatingExpenses},
}

// Classify returns the bucket an account number belongs to.
func Classify(account int) Bucket {
	for _, r := range basRanges {
		if account >= r.From && account < r.To {
			return r.Bucket
		}
	}
	return BucketNone
}

// CreditNormal reports whether the bucket is summed as absolute values.
func (b Bucket) CreditNormal() bool {
	switch b {
	case BucketRevenue, BucketEquity, BucketLiabilities:
		return true
	}
	return false
}
