package sie

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads decoded SIE text in a single pass. It always returns a result:
// records with unreadable numeric fields are skipped and listed in Result.Issues.
//
// A verification still open when the input ends is dropped, matching files
// truncated mid-block.
func Parse(text string) *Result {
	p := &parser{res: newResult()}
	for i, raw := range strings.Split(text, "\n") {
		p.line = i + 1
		p.handleLine(strings.TrimSpace(raw))
	}
	return p.res
}

// ParseBytes decodes raw file bytes and parses them.
func ParseBytes(b []byte) *Result {
	return Parse(Decode(b))
}

// ParseReader reads the whole input and parses it.
func ParseReader(r io.Reader) (*Result, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ParseReader: reading input: %w", err)
	}
	return ParseBytes(b), nil
}

// parser holds the state threaded through one pass over the file.
type parser struct {
	res     *Result
	open    *Transaction
	inBlock bool
	line    int
}

func (p *parser) handleLine(line string) {
	if line == "" || strings.HasPrefix(line, "//") {
		return
	}

	switch line {
	case blockOpen:
		p.inBlock = true
		return
	case blockClose:
		if p.open != nil {
			p.res.Transactions = append(p.res.Transactions, *p.open)
		}
		p.open = nil
		p.inBlock = false
		return
	}

	if !strings.HasPrefix(line, "#") {
		return
	}

	tokens := Tokenize(line)
	kind := LookupRecordKind(tokens[0])
	if kind == RecordEntry {
		// Entries outside an open verification block are discarded.
		if p.inBlock && p.open != nil {
			p.entry(tokens)
		}
		return
	}

	p.dispatch(kind, tokens)
}

func (p *parser) dispatch(kind RecordKind, t []string) {
	res := p.res

	switch kind {
	case RecordFormat:
		if len(t) >= 2 {
			res.Format = "SIE" + t[1]
		}

	case RecordFlag:
		if len(t) >= 2 {
			res.Flag = t[1]
		}

	case RecordProgram:
		if len(t) >= 3 {
			res.ProgramName = Unquote(t[1])
			res.ProgramVersion = Unquote(t[2])
		}

	case RecordGenerated:
		if len(t) >= 2 {
			res.GeneratedAt = t[1]
		}

	case RecordCompanyName:
		if len(t) >= 2 {
			res.Company.Name = Unquote(t[1])
		}

	case RecordOrgNumber:
		if len(t) >= 2 {
			res.Company.OrganizationNumber = t[1]
		}

	case RecordAddress:
		if len(t) >= 2 {
			res.Company.Address = Unquote(t[1])
		}

	case RecordIndustryCode:
		if len(t) >= 2 {
			res.Company.SNICode = t[1]
		}

	case RecordFiscalYear:
		if len(t) < 4 {
			return
		}
		index, ok := p.atoi(t[0], "fiscal year", t[1])
		if !ok {
			return
		}
		res.FiscalYears = append(res.FiscalYears, FiscalYear{Index: index, Start: t[2], End: t[3]})

	case RecordAccountPlanType:
		if len(t) >= 2 {
			res.AccountPlanType = Unquote(t[1])
		}

	case RecordAccount:
		if len(t) < 3 {
			return
		}
		number, ok := p.atoi(t[0], "account", t[1])
		if !ok {
			return
		}
		res.Accounts[number] = Unquote(t[2])

	case RecordAccountType:
		if len(t) < 3 {
			return
		}
		number, ok := p.atoi(t[0], "account", t[1])
		if !ok {
			return
		}
		res.AccountTypes[number] = Unquote(t[2])

	case RecordOpeningBalance:
		if b, ok := p.accountBalance(t); ok {
			res.OpeningBalances = append(res.OpeningBalances, b)
		}

	case RecordClosingBalance:
		if b, ok := p.accountBalance(t); ok {
			res.ClosingBalances = append(res.ClosingBalances, b)
		}

	case RecordResultBalance:
		if b, ok := p.accountBalance(t); ok {
			res.ResultBalances = append(res.ResultBalances, b)
		}

	case RecordPeriodBalance:
		if b, ok := p.periodBalance(t); ok {
			res.PeriodBalances = append(res.PeriodBalances, b)
		}

	case RecordVerification:
		if len(t) < 4 {
			return
		}
		series, number := Unquote(t[1]), Unquote(t[2])
		tx := &Transaction{
			ID:     series + number,
			Series: series,
			Number: number,
			Date:   t[3],
		}
		if len(t) > 4 {
			tx.Description = Unquote(t[4])
		}
		// An unterminated previous verification is replaced, never appended.
		p.open = tx
		p.inBlock = true

	case RecordDimension:
		if len(t) < 3 {
			return
		}
		number, ok := p.atoi(t[0], "dimension", t[1])
		if !ok {
			return
		}
		res.Dimensions[number] = Unquote(t[2])

	case RecordDimensionObject:
		if len(t) < 4 {
			return
		}
		dim, ok := p.atoi(t[0], "dimension", t[1])
		if !ok {
			return
		}
		res.DimensionObjects = append(res.DimensionObjects, DimensionObject{
			Dimension: dim,
			ID:        Unquote(t[2]),
			Name:      Unquote(t[3]),
		})

	case RecordEntry:
		// handled by handleLine

	case RecordUnknown:
		// Record kinds outside the consumed subset are ignored.
	}
}

// entry appends one #TRANS line to the open verification.
// Layout: #TRANS account {objects} amount [date] [text] ...
func (p *parser) entry(tokens []string) {
	t := collapseObjectLists(tokens)
	if len(t) < 3 {
		return
	}
	if tok, open := unclosedObjectList(t); open {
		p.issue(t[0], "objects", tok, ErrUnclosedObjectList)
		return
	}

	account, ok := p.atoi(t[0], "account", t[1])
	if !ok {
		return
	}

	amountField := t[2]
	if len(t) > 3 {
		amountField = t[3]
	}
	amount, ok := p.decimal(t[0], "amount", amountField)
	if !ok {
		return
	}

	e := Entry{AccountNumber: account, Amount: amount}
	if len(t) > 4 {
		e.Memo = Unquote(t[4])
	}
	p.open.Entries = append(p.open.Entries, e)
}

// accountBalance reads #IB, #UB and #RES: tag year account balance.
func (p *parser) accountBalance(t []string) (AccountBalance, bool) {
	if len(t) < 4 {
		return AccountBalance{}, false
	}
	year, ok := p.atoi(t[0], "fiscal year", t[1])
	if !ok {
		return AccountBalance{}, false
	}
	account, ok := p.atoi(t[0], "account", t[2])
	if !ok {
		return AccountBalance{}, false
	}
	balance, ok := p.decimal(t[0], "balance", t[3])
	if !ok {
		return AccountBalance{}, false
	}
	return AccountBalance{
		FiscalYear:    year,
		AccountNumber: account,
		AccountName:   p.res.Accounts[account],
		Balance:       balance,
	}, true
}

// periodBalance reads #PSALDO: tag year month account [{objects}] balance [quantity].
// The balance is the first field after the account that is not part of an
// object list; a line with no such field has a zero balance.
func (p *parser) periodBalance(tokens []string) (PeriodBalance, bool) {
	t := collapseObjectLists(tokens)
	if len(t) < 4 {
		return PeriodBalance{}, false
	}
	if tok, open := unclosedObjectList(t); open {
		p.issue(t[0], "objects", tok, ErrUnclosedObjectList)
		return PeriodBalance{}, false
	}
	year, ok := p.atoi(t[0], "fiscal year", t[1])
	if !ok {
		return PeriodBalance{}, false
	}
	month, ok := p.month(t[0], t[2])
	if !ok {
		return PeriodBalance{}, false
	}
	account, ok := p.atoi(t[0], "account", t[3])
	if !ok {
		return PeriodBalance{}, false
	}

	balance := decimal.Zero
	for _, tok := range t[4:] {
		if isObjectToken(tok) {
			continue
		}
		balance, ok = p.decimal(t[0], "balance", tok)
		if !ok {
			return PeriodBalance{}, false
		}
		break
	}

	return PeriodBalance{
		FiscalYear:    year,
		Month:         month,
		AccountNumber: account,
		Balance:       balance,
	}, true
}

// month accepts a bare month number or a YYYYMM period.
func (p *parser) month(tag, value string) (int, bool) {
	raw := Unquote(value)
	if len(raw) == 6 {
		raw = raw[4:]
	}
	month, err := strconv.Atoi(raw)
	if err != nil {
		p.issue(tag, "month", value, ErrUnparseableNumber)
		return 0, false
	}
	if month < 1 || month > 12 {
		p.issue(tag, "month", value, ErrMonthOutOfRange)
		return 0, false
	}
	return month, true
}

func (p *parser) atoi(tag, field, value string) (int, bool) {
	n, err := strconv.Atoi(Unquote(value))
	if err != nil {
		p.issue(tag, field, value, ErrUnparseableNumber)
		return 0, false
	}
	return n, true
}

func (p *parser) decimal(tag, field, value string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(Unquote(value))
	if err != nil {
		p.issue(tag, field, value, ErrUnparseableNumber)
		return decimal.Zero, false
	}
	return d, true
}

func (p *parser) issue(tag, field, value string, err error) {
	p.res.Issues = append(p.res.Issues, Issue{
		Line:   p.line,
		Tag:    strings.ToUpper(tag),
		Field:  field,
		Value:  value,
		Reason: err.Error(),
		Err:    err,
	})
}
