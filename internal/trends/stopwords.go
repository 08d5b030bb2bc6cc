package trends

var stopWords = toSet(
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could",
	"should", "may", "might", "shall", "can", "need", "dare", "ought",
	"and", "but", "or", "nor", "not", "so", "yet", "both", "either",
	"neither", "each", "every", "all", "any", "few", "more", "most",
	"other", "some", "such", "no", "only", "own", "same", "than", "too",
	"very", "just", "because", "as", "until", "while", "of", "at", "by",
	"for", "with", "about", "against", "between", "through", "during",
	"before", "after", "above", "below", "to", "from", "up", "down",
	"in", "out", "on", "off", "over", "under", "again", "further",
	"then", "once", "here", "there", "when", "where", "why", "how",
	"this", "that", "these", "those", "i", "me", "my", "myself", "we",
	"our", "you", "your", "he", "him", "his", "she", "her", "it", "its",
	"they", "them", "their", "what", "which", "who", "whom", "rt",
	"https", "http", "amp", "like", "get", "got", "new", "one", "im",
	"dont", "ive", "cant", "really", "love", "best", "want", "know",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
