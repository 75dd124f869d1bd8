package catalog

// Vocabulary is the controlled list of topic tags offered to users.
var Vocabulary = []string{
	"Array",
	"String",
	"Hash Table",
	"Dynamic Programming",
	"Depth-First Search",
	"Breadth-First Search",
	"Binary Search",
	"Two Pointers",
	"Greedy",
	"Backtracking",
	"Graphs",
	"Math",
	"Sorting",
	"Heap (Priority Queue)",
	"Bit Manipulation",
	"Stack",
	"Queue",
	"Sliding Window",
	"Union Find",
	"Trie",
	"Segment Tree",
	"Binary Indexed Tree",
	"Recursion",
}

// InVocabulary reports whether tag is one of the known topic tags.
func InVocabulary(tag string) bool {
	for _, v := range Vocabulary {
		if v == tag {
			return true
		}
	}
	return false
}
