// Package period handles the YYYYMM month tokens that partition every
// extracted dataset and key the processed-period ledger.
package period

import (
	"fmt"
	"regexp"
	"strings"
)

// Period is a calendar month in YYYYMM form. Zero-padding makes string
// comparison a valid total order.
type Period string

// Stage identifies one of the three extraction datasets.
type Stage string

const (
	StagePayments       Stage = "payments"
	StagePaymentActions Stage = "payment_actions"
	StageActionDetails  Stage = "action_details"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StagePayments, StagePaymentActions, StageActionDetails}

var filePrefixes = map[Stage]string{
	StagePayments:       "tpo_payments",
	StagePaymentActions: "tpo_payment_actions",
	StageActionDetails:  "tpo_action_details",
}

var filePatterns = map[Stage]*regexp.Regexp{
	StagePayments:       regexp.MustCompile(`^tpo_payments_(\d{6})_EXTRACTED\.csv$`),
	StagePaymentActions: regexp.MustCompile(`^tpo_payment_actions_(\d{6})_EXTRACTED\.csv$`),
	StageActionDetails:  regexp.MustCompile(`^tpo_action_details_(\d{6})_EXTRACTED\.csv$`),
}

var tokenPattern = regexp.MustCompile(`^\d{4}(0[1-9]|1[0-2])$`)

// Parse validates s as a YYYYMM token.
func Parse(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if !tokenPattern.MatchString(s) {
		return "", fmt.Errorf("invalid period %q: want YYYYMM", s)
	}
	return Period(s), nil
}

// Before reports whether p sorts strictly before other.
func (p Period) Before(other Period) bool {
	return p < other
}

func (p Period) String() string {
	return string(p)
}

// FileName returns the artifact file name for stage and p,
// e.g. tpo_payments_202405_EXTRACTED.csv.
func FileName(stage Stage, p Period) string {
	return fmt.Sprintf("%s_%s_EXTRACTED.csv", filePrefixes[stage], p)
}

// FromFilename extracts the period embedded in a stage artifact name.
// Names that do not follow the stage template, including the payments
// index, report false.
func FromFilename(stage Stage, name string) (Period, bool) {
	re, ok := filePatterns[stage]
	if !ok {
		return "", false
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	p, err := Parse(m[1])
	if err != nil {
		return "", false
	}
	return p, true
}

var commentPattern = regexp.MustCompile(`(?i)за (январь|февраль|март|апрель|май|июнь|июль|август|сентябрь|октябрь|ноябрь|декабрь)\s*(\d{4})`)

var monthNumbers = map[string]string{
	"январь":   "01",
	"февраль":  "02",
	"март":     "03",
	"апрель":   "04",
	"май":      "05",
	"июнь":     "06",
	"июль":     "07",
	"август":   "08",
	"сентябрь": "09",
	"октябрь":  "10",
	"ноябрь":   "11",
	"декабрь":  "12",
}

// FromComment derives the payout month from a payment comment such as
// "Выплата за март 2024". Comments without a recognisable month and year
// report false.
func FromComment(comment string) (Period, bool) {
	m := commentPattern.FindStringSubmatch(comment)
	if m == nil {
		return "", false
	}
	month, ok := monthNumbers[strings.ToLower(m[1])]
	if !ok {
		return "", false
	}
	return Period(m[2] + month), true
}
