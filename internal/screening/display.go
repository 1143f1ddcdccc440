package screening

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DisplayName renders an archive id as a human-friendly label for
// notifications and tables: the random prefix and extension are
// dropped and the hint is title-cased, so "a1b2c3d4_crypto_scam.png"
// becomes "Crypto Scam". Ids without a hint fall back to the raw id.
func DisplayName(id string) string {
	name := strings.TrimSuffix(id, filepath.Ext(id))
	if prefix, hint, ok := strings.Cut(name, "_"); ok && len(prefix) == 8 && hint != "" {
		name = hint
	} else {
		return id
	}
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}
