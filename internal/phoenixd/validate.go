package phoenixd

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
)

// Validate fails fast on parameters phoenixd would reject anyway.
func (p CreateInvoiceParams) Validate() error {
	if p.AmountSat <= 0 {
		return zerrors.Newf(zerrors.InvalidRequestError, "invoice amount must be positive, got %d", p.AmountSat)
	}
	if (p.Description == "") == (p.DescriptionHash == "") {
		return zerrors.Newf(zerrors.InvalidRequestError, "exactly one of description and description hash must be set")
	}
	if n := utf8.RuneCountInString(p.Description); n > DescriptionMaxLength {
		return zerrors.Newf(zerrors.InvalidRequestError,
			"invoice description is %d characters, maximum is %d", n, DescriptionMaxLength)
	}
	if p.DescriptionHash != "" {
		b, err := hex.DecodeString(p.DescriptionHash)
		if err != nil || len(b) != 32 {
			return zerrors.Wrap(zerrors.InvalidRequestError, "description hash must be a hex sha256 digest",
				fmt.Errorf("got %q", p.DescriptionHash))
		}
	}
	return nil
}
