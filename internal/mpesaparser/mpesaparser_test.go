package mpesaparser

import (
	"sync"
	"testing"
	"time"

	"fjacquet/sms-ledger/internal/dateutils"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	receivedWithPhone = "ABC12345 Confirmed. You have received Ksh 5,000.00 from John Doe +254712345678 on 20/01/25 at 10:15 AM"
	sentToPerson      = "QAB1CD2EF3 Confirmed. Ksh500.00 sent to JANE WANJIRU 0722000111 on 15/1/24 at 2:30 PM. New M-PESA balance is Ksh1,200.00."
	paidToMerchant    = "RBC7XY12ZQ Confirmed. Ksh1,250.00 paid to JAVA HOUSE on 3/2/2024 at 8:05 AM.New M-PESA balance is Ksh3,000.00."
	receivedBusiness  = "SFG9HJ3KL1 Confirmed.You have received Ksh15,000.00 from EQUITY BULK ACCOUNT on 28/2/24 at 11:45 PM New M-PESA balance is Ksh20,000.00."

	// mpesaSender is the address the gateway reports for MPESA notifications.
	mpesaSender = "MPESA"
)

func newTestParser(opts ...Option) *Parser {
	return NewParser(logging.NewMockLogger(), opts...)
}

func TestParse_ReceivedWithPhone(t *testing.T) {
	draft := newTestParser().Parse(receivedWithPhone, mpesaSender)

	require.True(t, draft.Matched())
	assert.Equal(t, models.ProviderMPESA, draft.Provider)
	assert.Equal(t, TagReceivedPerson, draft.Template)
	require.NotNil(t, draft.Direction)
	assert.Equal(t, models.DirectionReceived, *draft.Direction)
	require.NotNil(t, draft.Amount)
	assert.Equal(t, "5000.00", draft.Amount.StringFixed(2))
	require.NotNil(t, draft.CounterpartyName)
	assert.Equal(t, "John Doe", *draft.CounterpartyName)
	require.NotNil(t, draft.CounterpartyPhone)
	assert.Equal(t, "+254712345678", *draft.CounterpartyPhone)
	require.NotNil(t, draft.TransactionCode)
	assert.Equal(t, "ABC12345", *draft.TransactionCode)
	assert.Equal(t, "20/01/25", draft.RawDate)
	assert.Equal(t, "10:15 AM", draft.RawTime)
	require.NotNil(t, draft.OccurredAtLocal)
	assert.Equal(t, "2025-01-20T10:15:00+03:00", draft.OccurredAtLocal.Format(time.RFC3339))
	assert.GreaterOrEqual(t, draft.Confidence, 0.9)
	assert.Empty(t, draft.ParseErrors)
}

func TestParse_Templates(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		tag       string
		direction models.TransactionDirection
		amount    string
		cpName    string
		phone     string
		code      string
		when      string
	}{
		{
			name:      "sent to person",
			body:      sentToPerson,
			tag:       TagSentPerson,
			direction: models.DirectionSent,
			amount:    "500.00",
			cpName:    "JANE WANJIRU",
			phone:     "+254722000111",
			code:      "QAB1CD2EF3",
			when:      "2024-01-15T14:30:00+03:00",
		},
		{
			name:      "paid to merchant",
			body:      paidToMerchant,
			tag:       TagPaidMerchant,
			direction: models.DirectionPaid,
			amount:    "1250.00",
			cpName:    "JAVA HOUSE",
			code:      "RBC7XY12ZQ",
			when:      "2024-02-03T08:05:00+03:00",
		},
		{
			name:      "received from business",
			body:      receivedBusiness,
			tag:       TagReceivedBusiness,
			direction: models.DirectionReceived,
			amount:    "15000.00",
			cpName:    "EQUITY BULK ACCOUNT",
			code:      "SFG9HJ3KL1",
			when:      "2024-02-28T23:45:00+03:00",
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := p.Parse(tt.body, "MPESA")

			require.True(t, draft.Matched())
			assert.Equal(t, tt.tag, draft.Template)
			require.NotNil(t, draft.Direction)
			assert.Equal(t, tt.direction, *draft.Direction)
			require.NotNil(t, draft.Amount)
			assert.Equal(t, tt.amount, draft.Amount.StringFixed(2))
			require.NotNil(t, draft.CounterpartyName)
			assert.Equal(t, tt.cpName, *draft.CounterpartyName)
			if tt.phone == "" {
				assert.Nil(t, draft.CounterpartyPhone)
			} else {
				require.NotNil(t, draft.CounterpartyPhone)
				assert.Equal(t, tt.phone, *draft.CounterpartyPhone)
			}
			require.NotNil(t, draft.TransactionCode)
			assert.Equal(t, tt.code, *draft.TransactionCode)
			require.NotNil(t, draft.OccurredAtLocal)
			assert.Equal(t, tt.when, draft.OccurredAtLocal.Format(time.RFC3339))
			assert.Equal(t, 1.0, draft.Confidence)
		})
	}
}

func TestParse_PaidMerchantNeverCarriesPhone(t *testing.T) {
	body := "RBC7XY12ZQ Confirmed. Ksh100.00 paid to KAMAU SHOP 0712345678 on 3/2/24 at 8:05 AM. M-PESA"
	draft := newTestParser().Parse(body, "")

	require.True(t, draft.Matched())
	assert.Equal(t, TagPaidMerchant, draft.Template)
	assert.Nil(t, draft.CounterpartyPhone)
	require.NotNil(t, draft.CounterpartyName)
	assert.Equal(t, "KAMAU SHOP 0712345678", *draft.CounterpartyName)
}

func TestParse_PersonTemplateWinsOverBusiness(t *testing.T) {
	draft := newTestParser().Parse(receivedWithPhone, mpesaSender)

	assert.Equal(t, TagReceivedPerson, draft.Template)
	require.NotNil(t, draft.CounterpartyName)
	assert.Equal(t, "John Doe", *draft.CounterpartyName, "phone must not be folded into the name")
}

func TestParse_BrandlessBodyNeedsSenderHint(t *testing.T) {
	p := newTestParser()

	for _, hint := range []string{"", "+254700000000"} {
		t.Run("hint "+hint, func(t *testing.T) {
			draft := p.Parse(receivedWithPhone, hint)

			assert.False(t, draft.Matched())
			assert.Nil(t, draft.Direction)
			assert.Equal(t, 0.0, draft.Confidence)
			assert.Equal(t, []string{"not a MPESA message"}, draft.ParseErrors)
		})
	}

	assert.True(t, p.Parse(receivedWithPhone, mpesaSender).Matched())
}

func TestParse_NotCandidate(t *testing.T) {
	body := "Your OTP is 123456. Do not share it."
	draft := newTestParser().Parse(body, "+254700000000")

	assert.False(t, draft.Matched())
	assert.Equal(t, 0.0, draft.Confidence)
	assert.Equal(t, []string{"not a MPESA message"}, draft.ParseErrors)
	assert.Empty(t, draft.Provider)
}

func TestParse_NoMatchingPattern(t *testing.T) {
	body := "M-PESA: your account balance is Ksh 1,000.00"
	draft := newTestParser().Parse(body, "")

	assert.False(t, draft.Matched())
	assert.Nil(t, draft.Amount)
	assert.Equal(t, 0.0, draft.Confidence)
	assert.Equal(t, []string{ErrNoMatchingPattern}, draft.ParseErrors)
	assert.Equal(t, models.ProviderMPESA, draft.Provider)
}

func TestParse_InvalidUTF8(t *testing.T) {
	body := "MPESA \xff\xfe Confirmed"
	assert.NotPanics(t, func() {
		draft := newTestParser().Parse(body, "MPESA")
		assert.False(t, draft.Matched())
		assert.Equal(t, []string{ErrInvalidText}, draft.ParseErrors)
		assert.Equal(t, 0.0, draft.Confidence)
	})
}

func TestParse_SenderHintGate(t *testing.T) {
	body := "abc12345 confirmed. you have received ksh 100 from peter 0712345678 on 1/1/24 at 9:00 am"
	p := newTestParser()

	assert.False(t, p.Parse(body, "+254711111111").Matched())

	draft := p.Parse(body, "MPESA")
	require.True(t, draft.Matched())
	assert.Equal(t, "ABC12345", *draft.TransactionCode, "codes are upper-cased")
	assert.Equal(t, "100.00", draft.Amount.StringFixed(2))
}

func TestParse_UnresolvedTimestamp(t *testing.T) {
	body := "ABC12345 Confirmed. Ksh50.00 sent to MARY 0712345678 on 32/13/24 at 9:00 AM. MPESA"
	draft := newTestParser().Parse(body, "")

	require.True(t, draft.Matched())
	assert.Nil(t, draft.OccurredAtLocal)
	assert.Equal(t, "32/13/24", draft.RawDate)
	assert.Contains(t, draft.ParseErrors, ErrUnresolvedTimestamp)
	assert.Equal(t, 1.0, draft.Confidence, "base+amount+code+name reach the cap")

	lowered := NewParser(logging.NewMockLogger(), WithWeights(ConfidenceWeights{Base: 0.5, Amount: 0.2, Code: 0.1, Timestamp: 0.1, Name: 0.1}))
	assert.Equal(t, 0.9, lowered.Parse(body, "").Confidence)
}

func TestParse_InvalidAmount(t *testing.T) {
	body := "ABC12345 Confirmed. Ksh,,, sent to MARY 0712345678 on 1/1/24 at 9:00 AM. MPESA"
	draft := newTestParser().Parse(body, "")

	require.True(t, draft.Matched())
	assert.Nil(t, draft.Amount)
	assert.Contains(t, draft.ParseErrors, "invalid amount format: ,,,")
	assert.Equal(t, 0.9, draft.Confidence)
}

func TestParse_CustomResolverZone(t *testing.T) {
	p := newTestParser(WithResolver(dateutils.NewResolver(dateutils.FixedOffset(0))))
	draft := p.Parse(receivedWithPhone, mpesaSender)

	require.NotNil(t, draft.OccurredAtLocal)
	assert.Equal(t, "2025-01-20T10:15:00Z", draft.OccurredAtLocal.UTC().Format(time.RFC3339))
}

func TestIsCandidate(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name     string
		body     string
		sender   string
		expected bool
	}{
		{"brand in body", "New M-PESA balance", "", true},
		{"brand without hyphen", "mpesa reversal", "", true},
		{"brand in sender", "Confirmed.", "MPESA", true},
		{"no brand", "Confirmed. Ksh 100 sent", "+254700000000", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.IsCandidate(tt.body, tt.sender))
		})
	}
}

func TestWithBrandTokens(t *testing.T) {
	p := newTestParser(WithBrandTokens(" Airtel ", ""), WithProvider("AIRTEL"))

	assert.True(t, p.IsCandidate("AIRTEL MONEY", ""))
	assert.False(t, p.IsCandidate("M-PESA", ""))
	assert.Equal(t, []string{"not a AIRTEL message"}, p.Parse("M-PESA", "").ParseErrors)
	assert.Equal(t, "AIRTEL", p.Provider())
}

func TestParse_ConcurrentUse(t *testing.T) {
	p := newTestParser()
	bodies := []string{receivedWithPhone, sentToPerson, paidToMerchant, receivedBusiness}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			assert.True(t, p.Parse(body, mpesaSender).Matched())
		}(bodies[i%len(bodies)])
	}
	wg.Wait()
}
