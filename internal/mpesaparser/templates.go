package mpesaparser

import (
	"fmt"
	"regexp"

	"fjacquet/sms-ledger/internal/models"
)

// Token patterns shared by every template.
const (
	codePattern   = `(?P<code>[A-Z0-9]{8,12})`
	amountPattern = `(?P<amount>[\d,]+(?:\.\d{2})?)`
	phonePattern  = `(?P<phone>(?:\+?254|0)7\d{8})`
	datePattern   = `(?P<date>\d{1,2}/\d{1,2}/\d{2,4})`
	timePattern   = `(?P<time>\d{1,2}:\d{2}\s?(?:AM|PM))`
	namePattern   = `(?P<name>.+?)`
)

// Template tags. The prefix before the underscore names the direction.
const (
	TagReceivedPerson   = "received_person"
	TagSentPerson       = "sent_person"
	TagPaidMerchant     = "paid_merchant"
	TagReceivedBusiness = "received_business"
)

// Template is one entry of the ordered dispatch table.
type Template struct {
	Tag       string
	Direction models.TransactionDirection
	Pattern   *regexp.Regexp
}

func compile(body string) *regexp.Regexp {
	expr := fmt.Sprintf(`(?i)%s\s*Confirmed\.?\s*%s\s*on\s*%s\s*at\s*%s`,
		codePattern, body, datePattern, timePattern)
	return regexp.MustCompile(expr)
}

// DefaultTemplates is evaluated top to bottom and the first match wins. The
// phone-bearing templates come first: the business template would also
// match a person transfer but fold the phone number into the name.
var DefaultTemplates = []Template{
	{
		Tag:       TagReceivedPerson,
		Direction: models.DirectionReceived,
		Pattern: compile(fmt.Sprintf(`You\s*have\s*received\s*Ksh\s*%s\s*from\s+%s\s+%s`,
			amountPattern, namePattern, phonePattern)),
	},
	{
		Tag:       TagSentPerson,
		Direction: models.DirectionSent,
		Pattern: compile(fmt.Sprintf(`Ksh\s*%s\s*sent\s*to\s+%s\s+%s`,
			amountPattern, namePattern, phonePattern)),
	},
	{
		Tag:       TagPaidMerchant,
		Direction: models.DirectionPaid,
		Pattern:   compile(fmt.Sprintf(`Ksh\s*%s\s*paid\s*to\s+%s`, amountPattern, namePattern)),
	},
	{
		Tag:       TagReceivedBusiness,
		Direction: models.DirectionReceived,
		Pattern: compile(fmt.Sprintf(`You\s*have\s*received\s*Ksh\s*%s\s*from\s+%s`,
			amountPattern, namePattern)),
	},
}

// captures maps named groups to their matched text.
func captures(re *regexp.Regexp, match []string) map[string]string {
	out := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			out[name] = match[i]
		}
	}
	return out
}
