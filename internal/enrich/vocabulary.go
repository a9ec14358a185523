package enrich

// Vocabulary is the controlled set of category labels a listing may carry.
// Classifier output not in this list is discarded.
var Vocabulary = []string{
	"Agriculture", "Automotive", "Boat", "Beauty", "Personal Care",
	"Building", "Construction", "Communication", "Media", "Education",
	"Children", "Entertainment", "Recreation", "Financial Services",
	"Health Care", "Fitness", "Manufacturing", "Non-classifiable Establishments",
	"Online", "Technology", "Pet Services", "Restaurants", "Food",
	"Retail", "Service Businesses", "Real Estate",
}

var vocabularySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Vocabulary))
	for _, v := range Vocabulary {
		m[v] = struct{}{}
	}
	return m
}()

// InVocabulary reports whether label is an accepted category.
func InVocabulary(label string) bool {
	_, ok := vocabularySet[label]
	return ok
}
