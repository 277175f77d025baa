package sources

// Providers share no taxonomy. Each table maps the categories users pick to
// the closest value that provider understands; anything missing is dropped.

var newsAPICategories = map[string]string{
	"business":      "business",
	"entertainment": "entertainment",
	"general":       "general",
	"health":        "health",
	"science":       "science",
	"sport":         "sports",
	"sports":        "sports",
	"tech":          "technology",
	"technology":    "technology",
}

var guardianSections = map[string]string{
	"business":      "business",
	"culture":       "culture",
	"entertainment": "culture",
	"environment":   "environment",
	"health":        "society",
	"politics":      "politics",
	"science":       "science",
	"sport":         "sport",
	"sports":        "sport",
	"tech":          "technology",
	"technology":    "technology",
	"world":         "world",
}

var nytSections = map[string]string{
	"arts":          "Arts",
	"business":      "Business",
	"entertainment": "Arts",
	"environment":   "Climate",
	"health":        "Health",
	"politics":      "U.S.",
	"science":       "Science",
	"sport":         "Sports",
	"sports":        "Sports",
	"tech":          "Technology",
	"technology":    "Technology",
	"world":         "World",
}
