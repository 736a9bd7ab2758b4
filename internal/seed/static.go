// ABOUTME: Static fallback vocabulary when OpenAI API key is not available.
// ABOUTME: Provides countries, lorem words and animal types for row synthesis.

package seed

func staticVocabulary() Vocabulary {
	return Vocabulary{
		Countries: []string{
			"Argentina", "Australia", "Austria", "Belgium", "Brazil", "Canada", "Chile",
			"China", "Colombia", "Croatia", "Denmark", "Egypt", "Estonia", "Finland",
			"France", "Germany", "Ghana", "Greece", "Iceland", "India", "Indonesia",
			"Ireland", "Italy", "Japan", "Kenya", "Mexico", "Morocco", "Nepal",
			"Netherlands", "New Zealand", "Nigeria", "Norway", "Peru", "Poland",
			"Portugal", "South Korea", "Spain", "Sweden", "Thailand", "Uruguay",
		},
		Words: []string{
			"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit",
			"sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore", "et", "dolore",
			"magna", "aliqua", "enim", "ad", "minim", "veniam", "quis", "nostrud",
			"exercitation", "ullamco", "laboris", "nisi", "aliquip", "ex", "ea", "commodo",
			"consequat", "duis", "aute", "irure", "in", "reprehenderit", "voluptate",
			"velit", "esse", "cillum", "fugiat", "nulla", "pariatur", "excepteur", "sint",
			"occaecat", "cupidatat", "non", "proident", "sunt", "culpa", "qui", "officia",
			"deserunt", "mollit", "anim", "id", "est", "laborum", "vero", "accusamus",
			"dignissimos", "ducimus", "blanditiis", "praesentium", "voluptatum", "deleniti",
			"atque", "corrupti", "quos", "dolores", "quas", "molestias", "excepturi",
			"occaecati", "cupiditate", "provident",
		},
		Animals: []string{
			"bear", "bird", "cat", "cetacean", "cow", "crocodilia", "dog", "fish",
			"horse", "insect", "lion", "rabbit", "rodent", "snake",
		},
	}
}
