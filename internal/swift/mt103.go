package swift

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

const (
	// SWIFT field limits.
	maxReferenceLength  = 16
	maxNameLength       = 140
	maxRemittanceLength = 140

	// :32A: value date layout: yyMMdd.
	valueDateLayout = "060102"

	defaultOperationCode = "CRED"
)

// MT103 is the parsed form of a single customer credit transfer message.
type MT103 struct {
	SenderBIC           string
	ReceiverBIC         string
	Reference           string
	OperationCode       string
	ValueDate           time.Time
	Currency            string
	Amount              decimal.Decimal
	OrderingCustomer    string
	OrderingInstitution string
	CorrespondentBIC    string
	BeneficiaryBankBIC  string
	Beneficiary         string
	RemittanceInfo      string
	ChargeType          string
}

// formatAmount renders the :32A: amount with a comma as decimal separator.
func formatAmount(amount decimal.Decimal) string {
	return strings.ReplaceAll(amount.StringFixed(2), ".", ",")
}

// BuildMT103 renders the wire message for a SWIFT transfer. Free-text fields
// are ASCII-folded and clamped to their SWIFT limits.
func BuildMT103(transfer *data.SwiftTransfer) (string, error) {
	senderBIC, err := NormalizeBIC(transfer.SenderBIC)
	if err != nil {
		return "", fmt.Errorf("sender BIC: %w", err)
	}
	receiverBIC, err := NormalizeBIC(transfer.ReceiverBIC)
	if err != nil {
		return "", fmt.Errorf("receiver BIC: %w", err)
	}
	beneficiaryBankBIC, err := NormalizeBIC(transfer.BeneficiaryBankBIC)
	if err != nil {
		return "", fmt.Errorf("beneficiary bank BIC: %w", err)
	}

	var correspondentBIC string
	if transfer.CorrespondentBIC != nil && *transfer.CorrespondentBIC != "" {
		correspondentBIC, err = NormalizeBIC(*transfer.CorrespondentBIC)
		if err != nil {
			return "", fmt.Errorf("correspondent BIC: %w", err)
		}
	}

	if transfer.TransactionReference == "" {
		return "", fmt.Errorf("transaction reference is required")
	}
	if !transfer.Amount.IsPositive() {
		return "", fmt.Errorf("amount must be positive")
	}
	if err = transfer.ChargeType.Validate(); err != nil {
		return "", fmt.Errorf("charge type: %w", err)
	}

	var block4 strings.Builder
	writeField := func(tag, value string) {
		block4.WriteString(":")
		block4.WriteString(tag)
		block4.WriteString(":")
		block4.WriteString(value)
		block4.WriteString("\n")
	}

	writeField("20", utils.ClampString(transfer.TransactionReference, maxReferenceLength))
	writeField("23B", defaultOperationCode)
	writeField("32A", transfer.ValueDate.Format(valueDateLayout)+transfer.Currency+formatAmount(transfer.Amount))
	writeField("50K", utils.ClampString(utils.FoldASCII(transfer.OrderingCustomer), maxNameLength))
	writeField("52A", senderBIC)
	if correspondentBIC != "" {
		writeField("53A", correspondentBIC)
	}
	writeField("57A", beneficiaryBankBIC)
	writeField("59", utils.ClampString(utils.FoldASCII(transfer.Beneficiary), maxNameLength))
	if transfer.RemittanceInfo != nil && *transfer.RemittanceInfo != "" {
		writeField("70", utils.ClampString(utils.FoldASCII(*transfer.RemittanceInfo), maxRemittanceLength))
	}
	writeField("71A", string(transfer.ChargeType))

	var message strings.Builder
	fmt.Fprintf(&message, "{1:F01%s0000000000}", senderBIC)
	fmt.Fprintf(&message, "{2:I103%sN}", receiverBIC)
	message.WriteString("{3:{108:MT103}}")
	fmt.Fprintf(&message, "{4:\n%s-}", block4.String())
	fmt.Fprintf(&message, "{5:{CHK:%s}}", checksum(block4.String()))

	return message.String(), nil
}

// checksum is a deterministic 12-hex-digit digest of block 4. It stands in
// for the network-computed CHK trailer.
func checksum(block4 string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(block4))
	return fmt.Sprintf("%012X", h.Sum64())[:12]
}

// ParseMT103 extracts the transfer fields back out of a wire message. Used to
// validate round-trips and to ingest inbound messages.
func ParseMT103(message string) (*MT103, error) {
	parsed := &MT103{}

	senderStart := strings.Index(message, "{1:F01")
	if senderStart < 0 || len(message) < senderStart+6+11 {
		return nil, fmt.Errorf("missing basic header block")
	}
	parsed.SenderBIC = message[senderStart+6 : senderStart+6+11]

	receiverStart := strings.Index(message, "{2:I103")
	if receiverStart < 0 || len(message) < receiverStart+7+11 {
		return nil, fmt.Errorf("missing application header block")
	}
	parsed.ReceiverBIC = message[receiverStart+7 : receiverStart+7+11]

	block4Start := strings.Index(message, "{4:")
	block4End := strings.Index(message, "-}")
	if block4Start < 0 || block4End < 0 || block4End < block4Start {
		return nil, fmt.Errorf("missing text block")
	}
	block4 := message[block4Start+3 : block4End]

	fields := map[string]string{}
	for _, line := range strings.Split(block4, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ":") {
			continue
		}
		tagEnd := strings.Index(line[1:], ":")
		if tagEnd < 0 {
			continue
		}
		fields[line[1:1+tagEnd]] = line[tagEnd+2:]
	}

	parsed.Reference = fields["20"]
	parsed.OperationCode = fields["23B"]
	parsed.OrderingCustomer = fields["50K"]
	parsed.OrderingInstitution = fields["52A"]
	parsed.CorrespondentBIC = fields["53A"]
	parsed.BeneficiaryBankBIC = fields["57A"]
	parsed.Beneficiary = fields["59"]
	parsed.RemittanceInfo = fields["70"]
	parsed.ChargeType = fields["71A"]

	if parsed.Reference == "" {
		return nil, fmt.Errorf("missing :20: transaction reference")
	}

	settlement, ok := fields["32A"]
	if !ok {
		return nil, fmt.Errorf("missing :32A: value date/currency/amount")
	}
	if len(settlement) < 6+3+1 {
		return nil, fmt.Errorf("malformed :32A: field %q", settlement)
	}

	valueDate, err := time.Parse(valueDateLayout, settlement[:6])
	if err != nil {
		return nil, fmt.Errorf("parsing :32A: value date: %w", err)
	}
	parsed.ValueDate = valueDate
	parsed.Currency = settlement[6:9]

	amount, err := decimal.NewFromString(strings.ReplaceAll(settlement[9:], ",", "."))
	if err != nil {
		return nil, fmt.Errorf("parsing :32A: amount: %w", err)
	}
	parsed.Amount = amount

	return parsed, nil
}
