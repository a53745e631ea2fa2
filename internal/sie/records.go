package sie

import "strings"

// RecordKind identifies a SIE record tag understood by the parser.
type RecordKind int

const (
	RecordUnknown RecordKind = iota
	RecordFormat
	RecordFlag
	RecordProgram
	RecordGenerated
	RecordCompanyName
	RecordOrgNumber
	RecordAddress
	RecordIndustryCode
	RecordFiscalYear
	RecordAccountPlanType
	RecordAccount
	RecordAccountType
	RecordOpeningBalance
	RecordClosingBalance
	RecordResultBalance
	RecordPeriodBalance
	RecordVerification
	RecordEntry
	RecordDimension
	RecordDimensionObject
)

// Block delimiters for verification entries.
const (
	blockOpen  = "{"
	blockClose = "}"
)

var recordTags = map[string]RecordKind{
	"#SIETYP":  RecordFormat,
	"#FLAGGA":  RecordFlag,
	"#PROGRAM": RecordProgram,
	"#GEN":     RecordGenerated,
	"#FNAMN":   RecordCompanyName,
	"#ORGNR":   RecordOrgNumber,
	"#ADRESS":  RecordAddress,
	"#SNI":     RecordIndustryCode,
	"#RAR":     RecordFiscalYear,
	"#KPTYP":   RecordAccountPlanType,
	"#KONTO":   RecordAccount,
	"#KTYP":    RecordAccountType,
	"#IB":      RecordOpeningBalance,
	"#UB":      RecordClosingBalance,
	"#RES":     RecordResultBalance,
	"#PSALDO":  RecordPeriodBalance,
	"#VER":     RecordVerification,
	"#TRANS":   RecordEntry,
	"#DIM":     RecordDimension,
	"#OBJEKT":  RecordDimensionObject,
}

// LookupRecordKind resolves a tag case-insensitively. Unknown tags map to RecordUnknown.
func LookupRecordKind(tag string) RecordKind {
	return recordTags[strings.ToUpper(tag)]
}

var recordNames = func() map[RecordKind]string {
	m := make(map[RecordKind]string, len(recordTags))
	for tag, kind := range recordTags {
		m[kind] = tag
	}
	return m
}()

func (k RecordKind) String() string {
	if name, ok := recordNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}
