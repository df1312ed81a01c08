// Package payuri parses payment request URIs into transaction outputs.
//
// Bitcoin-like coins use BIP-21 and Zcash uses ZIP-321, which extends the same
// syntax with indexed parameters for several recipients:
//
//	bitcoin:<address>?amount=<amount>&label=<label>
//	zcash:?address=<addr0>&amount=<amt0>&address.1=<addr1>&amount.1=<amt1>
//
// Amounts are decimal coin units with at most eight fractional digits and are
// converted to base units exactly.
//
// See: https://github.com/bitcoin/bips/blob/master/bip-0021.mediawiki
// See: https://zips.z.cash/zip-0321
package payuri

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// maxIndex is the largest parameter index ZIP-321 allows.
const maxIndex = 9999

// Base units per coin.
const coinDecimals = 8

// PaymentRequest is a parsed payment request.
type PaymentRequest struct {
	Scheme   string
	Payments []Payment
}

// Payment is one recipient of a request.
type Payment struct {
	Address string
	Amount  uint64 // Base units; zero when the payer chooses
	Label   string
	Message string
}

// Scheme returns the URI scheme of coin.
func Scheme(coin *coins.CoinInfo) string {
	switch coin.Name {
	case "Bcash":
		return "bitcoincash"
	default:
		return strings.ToLower(coin.Name)
	}
}

// Parse parses a payment request URI. The scheme must be present.
//
// Example:
//
//	req, err := payuri.Parse("bitcoin:1BoatSLRHtKNngkdXEeobR76b53LETtpyT?amount=0.5")
func Parse(uri string) (*PaymentRequest, error) {
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok || scheme == "" {
		return nil, errors.Errorf("missing scheme in %q", uri)
	}
	scheme = strings.ToLower(scheme)
	baseAddress, query, _ := strings.Cut(rest, "?")

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, errors.Wrap(err, "parse query")
	}
	for key := range params {
		name, _, _ := strings.Cut(key, ".")
		if strings.HasPrefix(name, "req-") {
			return nil, errors.Errorf("unsupported required parameter %q", key)
		}
	}

	var payments []Payment
	if hasIndexedParams(params) {
		if baseAddress != "" {
			return nil, errors.New("indexed parameters with a path address")
		}
		payments, err = parseIndexedPayments(params)
	} else {
		var p Payment
		p, err = parseSinglePayment(baseAddress, params)
		payments = []Payment{p}
	}
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, errors.New("no payments in request")
	}
	return &PaymentRequest{Scheme: scheme, Payments: payments}, nil
}

func parseSinglePayment(address string, params url.Values) (Payment, error) {
	p := Payment{Address: address}
	if a := params.Get("address"); a != "" {
		if address != "" {
			return p, errors.New("address given twice")
		}
		p.Address = a
	}
	if p.Address == "" {
		return p, errors.New("payment without address")
	}
	return p, fillPayment(&p, params, 0)
}

// parseIndexedPayments collects every index present in params. Index 0 may
// be written without a suffix, and may not be written as "name.0".
func parseIndexedPayments(params url.Values) ([]Payment, error) {
	indices := make(map[int]bool)
	for key := range params {
		idx := extractIndex(key)
		if idx < 0 {
			return nil, errors.Errorf("invalid parameter index in %q", key)
		}
		indices[idx] = true
	}

	sorted := make([]int, 0, len(indices))
	for idx := range indices {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	payments := make([]Payment, 0, len(sorted))
	for _, idx := range sorted {
		p := Payment{Address: getIndexedParam(params, "address", idx)}
		if p.Address == "" {
			return nil, errors.Errorf("payment %d missing address", idx)
		}
		if err := fillPayment(&p, params, idx); err != nil {
			return nil, errors.Wrapf(err, "payment %d", idx)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func fillPayment(p *Payment, params url.Values, idx int) error {
	if s := getIndexedParam(params, "amount", idx); s != "" {
		amount, err := ParseAmount(s)
		if err != nil {
			return errors.Wrap(err, "invalid amount")
		}
		p.Amount = amount
	}
	if getIndexedParam(params, "memo", idx) != "" {
		return errors.New("memos need a shielded recipient")
	}
	p.Label = getIndexedParam(params, "label", idx)
	p.Message = getIndexedParam(params, "message", idx)
	return nil
}

// hasIndexedParams reports whether any parameter carries a ".N" suffix.
func hasIndexedParams(params url.Values) bool {
	for key := range params {
		if strings.Contains(key, ".") {
			return true
		}
	}
	return false
}

// extractIndex returns N for "name.N", 0 for a bare name, and -1 when the
// suffix is not a valid index.
func extractIndex(key string) int {
	_, suffix, ok := strings.Cut(key, ".")
	if !ok {
		return 0
	}
	if suffix == "" || suffix[0] == '0' {
		return -1
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 0 || idx > maxIndex {
		return -1
	}
	return idx
}

func getIndexedParam(params url.Values, name string, idx int) string {
	if idx == 0 {
		if v := params.Get(name); v != "" {
			return v
		}
	}
	return params.Get(name + "." + strconv.Itoa(idx))
}

// ParseAmount converts a decimal coin amount to base units.
func ParseAmount(s string) (uint64, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, errors.New("empty amount")
	}
	if len(frac) > coinDecimals {
		return 0, errors.Errorf("more than %d decimals", coinDecimals)
	}
	frac += strings.Repeat("0", coinDecimals-len(frac))
	if whole == "" {
		whole = "0"
	}
	for _, part := range []string{whole, frac} {
		if strings.TrimLeft(part, "0123456789") != "" {
			return 0, errors.Errorf("not a decimal number: %q", s)
		}
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "whole part")
	}
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "fractional part")
	}
	const unit = 100_000_000
	if w > (^uint64(0)-f)/unit {
		return 0, errors.New("amount overflows")
	}
	return w*unit + f, nil
}

// FormatAmount renders base units as a decimal coin amount without trailing
// zeros.
func FormatAmount(amount uint64) string {
	s := strconv.FormatUint(amount/100_000_000, 10)
	frac := strings.TrimRight(strconv.FormatUint(100_000_000+amount%100_000_000, 10)[1:], "0")
	if frac != "" {
		s += "." + frac
	}
	return s
}

// Outputs converts the request into outputs for coin. Every payment must
// name an amount.
func (req *PaymentRequest) Outputs(coin *coins.CoinInfo) ([]txmsg.TxOutput, error) {
	if want := Scheme(coin); req.Scheme != want {
		return nil, errors.Errorf("request scheme %q does not match %s", req.Scheme, coin.Name)
	}
	outs := make([]txmsg.TxOutput, 0, len(req.Payments))
	for i, p := range req.Payments {
		if p.Amount == 0 {
			return nil, errors.Errorf("payment %d has no amount", i)
		}
		outs = append(outs, txmsg.TxOutput{
			Address:    p.Address,
			Amount:     p.Amount,
			ScriptType: txmsg.PayToAddress,
		})
	}
	return outs, nil
}

// Encode renders the request as a URI. A single payment uses the address as
// the URI path; several payments use indexed parameters.
func (req *PaymentRequest) Encode() string {
	if len(req.Payments) == 1 {
		p := req.Payments[0]
		uri := req.Scheme + ":" + p.Address
		if params := encodeParams(p, ""); len(params) > 0 {
			uri += "?" + params.Encode()
		}
		return uri
	}

	params := url.Values{}
	for i, p := range req.Payments {
		suffix := ""
		if i > 0 {
			suffix = "." + strconv.Itoa(i)
		}
		params.Set("address"+suffix, p.Address)
		for k, v := range encodeParams(p, suffix) {
			params[k] = v
		}
	}
	return req.Scheme + ":?" + params.Encode()
}

func encodeParams(p Payment, suffix string) url.Values {
	params := url.Values{}
	if p.Amount > 0 {
		params.Set("amount"+suffix, FormatAmount(p.Amount))
	}
	if p.Label != "" {
		params.Set("label"+suffix, p.Label)
	}
	if p.Message != "" {
		params.Set("message"+suffix, p.Message)
	}
	return params
}
