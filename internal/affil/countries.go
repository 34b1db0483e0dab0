// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package affil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var countryNames = []string{
	"Afghanistan", "Albania", "Algeria", "Andorra", "Angola", "Argentina", "Armenia",
	"Australia", "Austria", "Azerbaijan", "Bahamas", "Bahrain", "Bangladesh", "Barbados",
	"Belarus", "Belgium", "Belize", "Benin", "Bhutan", "Bolivia", "Bosnia and Herzegovina",
	"Botswana", "Brazil", "Brunei", "Bulgaria", "Burkina Faso", "Burundi", "Cambodia",
	"Cameroon", "Canada", "Cape Verde", "Central African Republic", "Chad", "Chile", "China",
	"Colombia", "Comoros", "Congo", "Costa Rica", "Croatia", "Cuba", "Cyprus",
	"Czech Republic", "Denmark", "Djibouti", "Dominican Republic", "Ecuador", "Egypt",
	"El Salvador", "Eritrea", "Estonia", "Eswatini", "Ethiopia", "Fiji", "Finland", "France",
	"Gabon", "Gambia", "Georgia", "Germany", "Ghana", "Greece", "Grenada", "Guatemala",
	"Guinea", "Guinea-Bissau", "Guyana", "Haiti", "Honduras", "Hong Kong", "Hungary",
	"Iceland", "India", "Indonesia", "Iran", "Iraq", "Ireland", "Israel", "Italy",
	"Ivory Coast", "Jamaica", "Japan", "Jordan", "Kazakhstan", "Kenya", "Kosovo", "Kuwait",
	"Kyrgyzstan", "Laos", "Latvia", "Lebanon", "Lesotho", "Liberia", "Libya",
	"Liechtenstein", "Lithuania", "Luxembourg", "Macao", "Madagascar", "Malawi", "Malaysia",
	"Maldives", "Mali", "Malta", "Mauritania", "Mauritius", "Mexico", "Moldova", "Monaco",
	"Mongolia", "Montenegro", "Morocco", "Mozambique", "Myanmar", "Namibia", "Nepal",
	"Netherlands", "New Zealand", "Nicaragua", "Niger", "Nigeria", "North Korea",
	"North Macedonia", "Norway", "Oman", "Pakistan", "Palestine", "Panama",
	"Papua New Guinea", "Paraguay", "Peru", "Philippines", "Poland", "Portugal",
	"Puerto Rico", "Qatar", "Romania", "Russia", "Rwanda", "Saudi Arabia", "Senegal",
	"Serbia", "Seychelles", "Sierra Leone", "Singapore", "Slovakia", "Slovenia", "Somalia",
	"South Africa", "South Korea", "South Sudan", "Spain", "Sri Lanka", "Sudan", "Suriname",
	"Sweden", "Switzerland", "Syria", "Taiwan", "Tajikistan", "Tanzania", "Thailand", "Togo",
	"Trinidad and Tobago", "Tunisia", "Turkey", "Turkmenistan", "Uganda", "Ukraine",
	"United Arab Emirates", "United Kingdom", "Uruguay", "USA", "Uzbekistan", "Venezuela",
	"Vietnam", "Yemen", "Zambia", "Zimbabwe",
}

// countryAliases maps alternate spellings to an entry of countryNames.
var countryAliases = map[string]string{
	"united states":              "USA",
	"united states of america":   "USA",
	"u.s.a":                      "USA",
	"us":                         "USA",
	"u.s":                        "USA",
	"uk":                         "United Kingdom",
	"u.k":                        "United Kingdom",
	"england":                    "United Kingdom",
	"scotland":                   "United Kingdom",
	"wales":                      "United Kingdom",
	"northern ireland":           "United Kingdom",
	"great britain":              "United Kingdom",
	"people's republic of china": "China",
	"p.r. china":                 "China",
	"pr china":                   "China",
	"republic of korea":          "South Korea",
	"korea":                      "South Korea",
	"russian federation":         "Russia",
	"the netherlands":            "Netherlands",
	"holland":                    "Netherlands",
	"deutschland":                "Germany",
	"españa":                     "Spain",
	"brasil":                     "Brazil",
	"türkiye":                    "Turkey",
	"viet nam":                   "Vietnam",
	"côte d'ivoire":              "Ivory Coast",
	"czechia":                    "Czech Republic",
	"iran (islamic republic of)": "Iran",
	"uae":                        "United Arab Emirates",
}

var countries = buildCountries()

func buildCountries() map[string]string {
	fold := cases.Fold()
	m := make(map[string]string, len(countryNames)+len(countryAliases))
	for _, name := range countryNames {
		m[fold.String(name)] = name
	}
	for alias, name := range countryAliases {
		m[fold.String(alias)] = name
	}
	return m
}

// countryOf returns the country named by segment. Digits, as in a postal
// code written next to the country, are ignored.
func countryOf(segment string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, segment)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.Trim(cleaned, ". -")
	if cleaned == "" {
		return "", false
	}
	name, ok := countries[cases.Fold().String(cleaned)]
	return name, ok
}
