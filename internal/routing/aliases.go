package routing

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// builtinAliases lists the Maltese localities whose Maltese, English and article-prefixed
// spellings commonly appear in booking addresses.
var builtinAliases = map[string][]string{
	"Attard":          {"H'Attard", "Ħ'Attard"},
	"Birgu":           {"Il-Birgu", "Vittoriosa", "Città Vittoriosa"},
	"Birkirkara":      {"B'Kara", "Bkara", "Ħal Birkirkara"},
	"Bormla":          {"Cospicua", "Città Cospicua"},
	"Fgura":           {"Il-Fgura"},
	"Gzira":           {"Il-Gżira", "Gżira"},
	"Hamrun":          {"Il-Ħamrun", "Ħamrun", "Il-Hamrun"},
	"Isla":            {"L-Isla", "Senglea", "Città Invicta"},
	"Marsa":           {"Il-Marsa"},
	"Marsaskala":      {"Wied il-Għajn", "M'Skala", "Marsascala"},
	"Mdina":           {"L-Imdina", "Imdina", "Città Notabile"},
	"Mellieha":        {"Il-Mellieħa", "Mellieħa"},
	"Mosta":           {"Il-Mosta"},
	"Msida":           {"L-Imsida", "Imsida"},
	"Naxxar":          {"In-Naxxar"},
	"Paola":           {"Raħal Ġdid", "Rahal Gdid", "Paula"},
	"Qormi":           {"Ħal Qormi", "Casal Fornaro"},
	"Rabat":           {"Ir-Rabat"},
	"San Gwann":       {"San Ġwann", "St. John's", "SGN"},
	"San Giljan":      {"San Ġiljan", "St. Julian's", "St Julians"},
	"San Pawl":        {"San Pawl il-Baħar", "St. Paul's Bay", "St Pauls Bay"},
	"Santa Venera":    {"Sta Venera", "St. Venera"},
	"Sliema":          {"Tas-Sliema"},
	"Valletta":        {"Il-Belt Valletta", "Il-Belt", "Belt Valletta"},
	"Victoria":        {"Ir-Rabat Għawdex", "Rabat Gozo"},
	"Zabbar":          {"Ħaż-Żabbar", "Żabbar", "Haz-Zabbar"},
	"Zebbug":          {"Ħaż-Żebbuġ", "Żebbuġ", "Haz-Zebbug"},
	"Zejtun":          {"Iż-Żejtun", "Żejtun"},
	"Zurrieq":         {"Iż-Żurrieq", "Żurrieq"},
	"Swieqi":          {"Is-Swieqi"},
	"Pembroke":        {"Pembroke"},
	"Ta' Xbiex":       {"Ta Xbiex"},
	"Kalkara":         {"Il-Kalkara"},
	"Xghajra":         {"Ix-Xgħajra", "Xgħajra"},
	"Xewkija":         {"Ix-Xewkija"},
	"Luqa":            {"Ħal Luqa"},
	"Siggiewi":        {"Is-Siġġiewi", "Siġġiewi"},
	"Dingli":          {"Ħad-Dingli", "Had-Dingli"},
	"Mgarr":           {"L-Imġarr", "Mġarr", "Imgarr"},
	"Pieta":           {"Tal-Pietà", "Pietà"},
	"Kirkop":          {"Ħal Kirkop"},
	"Gharghur":        {"Għargħur", "Ħal Għargħur"},
	"Iklin":           {"L-Iklin"},
	"Lija":            {"Ħal Lija"},
	"Balzan":          {"Ħal Balzan"},
	"Birzebbuga":      {"Birżebbuġa", "B'Bugia"},
	"Marsaxlokk":      {"Marsaxlokk"},
	"Gudja":           {"Il-Gudja"},
	"Ghaxaq":          {"Ħal Għaxaq", "Għaxaq"},
	"Tarxien":         {"Ħal Tarxien", "It-Tarxien"},
	"Santa Lucija":    {"Santa Luċija", "Sta Lucija"},
	"Qrendi":          {"Il-Qrendi"},
	"Mqabba":          {"L-Imqabba", "Imqabba"},
	"Safi":            {"Ħal Safi"},
	"Kercem":          {"Ta' Kerċem", "Kerċem"},
	"Nadur":           {"In-Nadur"},
	"Xaghra":          {"Ix-Xagħra", "Xagħra"},
	"Ghajnsielem":     {"Għajnsielem"},
	"Sannat":          {"Ta' Sannat"},
	"Munxar":          {"Il-Munxar"},
	"Fontana":         {"Il-Fontana"},
	"Gharb":           {"L-Għarb", "Għarb"},
	"Zebbug Gozo":     {"Iż-Żebbuġ Għawdex"},
	"Qala":            {"Il-Qala"},
	"Xlendi":          {"Ix-Xlendi"},
	"Marsalforn":      {"Marsalforn"},
	"Bahar ic-Caghaq": {"Baħar iċ-Ċagħaq"},
}

// articlePrefixes are stripped from folded names. Longer forms come first.
var articlePrefixes = []string{
	"tal-", "tas-", "taz-", "ta' ", "ta'",
	"haz-", "had-", "hal ", "h'",
	"il-", "l-", "ix-", "iz-", "is-", "it-", "in-", "ir-", "id-", "ic-", "ig-",
	"san ",
}

// AliasTable maps the spellings of a locality to one canonical name.
type AliasTable struct {
	entries map[string]string
}

// NewAliasTable returns a table holding the built-in Maltese localities.
func NewAliasTable() *AliasTable {
	t := &AliasTable{entries: make(map[string]string)}
	for canonical, aliases := range builtinAliases {
		t.Add(canonical, aliases...)
	}

	return t
}

// Add registers canonical and its aliases. Later registrations override earlier ones.
func (t *AliasTable) Add(canonical string, aliases ...string) {
	t.entries[normalizeCity(canonical)] = canonical
	for _, alias := range aliases {
		t.entries[normalizeCity(alias)] = canonical
	}
}

// Canonical returns the canonical name of city. Names missing from the table come back
// folded and title-cased with their article kept, so "Ħal Far" reads "Hal Far".
func (t *AliasTable) Canonical(city string) string {
	if canonical, ok := t.entries[normalizeCity(city)]; ok {
		return canonical
	}

	return cases.Title(language.Und).String(foldCity(city))
}

// key groups spellings of the same locality. Unknown names that differ only in case,
// diacritics or leading article share a key.
func (t *AliasTable) key(city string) string {
	key := normalizeCity(city)
	if canonical, ok := t.entries[key]; ok {
		return normalizeCity(canonical)
	}

	return key
}

type aliasFile struct {
	Cities []struct {
		Canonical string   `toml:"canonical"`
		Aliases   []string `toml:"aliases"`
	} `toml:"city"`
}

// LoadAliasTable returns the built-in table overlaid with the entries of a TOML file:
//
//	[[city]]
//	canonical = "Santa Venera"
//	aliases = ["Sta Venera", "St. Venera"]
func LoadAliasTable(path string) (*AliasTable, error) {
	var file aliasFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode city aliases: %w", err)
	}

	t := NewAliasTable()
	for i, city := range file.Cities {
		if strings.TrimSpace(city.Canonical) == "" {
			return nil, fmt.Errorf("city alias entry %d has no canonical name", i+1)
		}
		t.Add(city.Canonical, city.Aliases...)
	}

	return t, nil
}

var letterFold = strings.NewReplacer("ħ", "h", "Ħ", "h", "’", "'", "`", "'")

// normalizeCity folds city and removes one leading article.
func normalizeCity(city string) string {
	folded := foldCity(city)
	for _, prefix := range articlePrefixes {
		if rest, ok := strings.CutPrefix(folded, prefix); ok && strings.TrimSpace(rest) != "" {
			return strings.TrimSpace(rest)
		}
	}

	return folded
}

// foldCity folds case and diacritics and collapses whitespace.
func foldCity(city string) string {
	folded := letterFold.Replace(strings.ToLower(strings.TrimSpace(city)))

	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(strip, folded); err == nil {
		folded = out
	}

	return strings.Join(strings.Fields(folded), " ")
}
