package models

// Video categories are stored twice: a canonical code ("life") and a
// localized display label ("生活"). Data written by older clients may carry
// either side alone; NormalizeCategory reconstructs the other.

var labelByCode = map[string]string{
	"technology":    "科技",
	"life":          "生活",
	"dance":         "舞蹈",
	"game":          "游戏",
	"movie":         "影视",
	"music":         "音乐",
	"animation":     "动画",
	"entertainment": "娱乐",
}

var codeByLabel = func() map[string]string {
	m := make(map[string]string, len(labelByCode))
	for code, label := range labelByCode {
		m[label] = code
	}
	return m
}()

// CategoryLabel returns the localized label for a canonical code.
func CategoryLabel(code string) (string, bool) {
	label, ok := labelByCode[code]
	return label, ok
}

// CategoryCode returns the canonical code for a localized label.
func CategoryCode(label string) (string, bool) {
	code, ok := codeByLabel[label]
	return code, ok
}

// NormalizeCategory reconciles a (code, label) pair where either side may be
// missing or where the code slot holds a localized label. Unknown categories
// pass through with the label defaulting to the code. Idempotent.
func NormalizeCategory(category, categoryName string) (code, label string) {
	if category == "" {
		return category, categoryName
	}

	// The code slot may hold a localized label written by an old client.
	if c, ok := codeByLabel[category]; ok {
		category = c
	}

	if categoryName == "" {
		if l, ok := labelByCode[category]; ok {
			categoryName = l
		} else {
			categoryName = category
		}
	}
	return category, categoryName
}

// CategoryMatches reports whether a video's (code, label) pair matches a
// query given as either side.
func CategoryMatches(code, label, query string) bool {
	if query == "" {
		return false
	}
	normalized := query
	if c, ok := codeByLabel[query]; ok {
		normalized = c
	}
	return code == normalized || code == query || (label != "" && label == query)
}
