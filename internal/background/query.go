package background

import "strings"

// queryRule maps a condition-text keyword to a canonical search query.
type queryRule struct {
	keywords []string
	query    string
}

// queryRules is the ordered mapping table; the first matching rule wins.
var queryRules = []queryRule{
	{[]string{"sunny", "clear"}, "clear sky sunny weather"},
	{[]string{"cloud"}, "cloudy sky weather"},
	{[]string{"rain"}, "rain weather storm"},
	{[]string{"snow"}, "snow winter weather"},
	{[]string{"storm"}, "thunderstorm storm weather"},
	{[]string{"fog", "mist"}, "fog mist weather"},
	{[]string{"wind"}, "windy weather"},
}

// defaultQuery is used when no rule matches.
const defaultQuery = "weather sky landscape"

// QueryForCondition maps raw condition text to a photo search query via a
// case-insensitive substring match against the rule table.
func QueryForCondition(condition string) string {
	lowered := strings.ToLower(condition)
	for _, rule := range queryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.query
			}
		}
	}
	return defaultQuery
}
