package archive

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/illarion/ofdcrypt/internal/fault"
)

// DecodeName returns the entry name as UTF-8. Names that are not valid
// UTF-8 are decoded as GBK, the encoding used by most Chinese archivers
// that do not set the UTF-8 flag.
func DecodeName(raw string) (string, error) {
	if utf8.ValidString(raw) {
		return raw, nil
	}

	decoded, err := simplifiedchinese.GBK.NewDecoder().String(raw)
	if err != nil || !utf8.ValidString(decoded) {
		return "", fault.New(fault.ErrInvalidArgument, "decode name", fmt.Sprintf("%q", raw), err)
	}
	return decoded, nil
}
