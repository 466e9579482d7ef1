package embedding

// CLIP text tower input constants (ViT-B-32).
const (
	clipContextLength = 77
	clipStartToken    = 49406
	clipEndToken      = 49407
	clipVocabSize     = 49408
)

// Tokenizer produces padded CLIP token IDs for a text query.
type Tokenizer interface {
	Tokenize(text string) []int64
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs. It is
// not the BPE vocabulary the real model ships with; it exists as a fallback
// and for tests, matching word identity rather than subword identity.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces CLIP-shaped token IDs:
// start token, word tokens, end token, zero padding to the context length.
func (t *SimpleTokenizer) Tokenize(text string) []int64 {
	ids := make([]int64, clipContextLength)
	ids[0] = clipStartToken
	pos := 1
	for _, word := range SplitWords(text) {
		if pos >= clipContextLength-1 {
			break
		}
		ids[pos] = int64(HashString(word)%(clipVocabSize-2)) + 1
		pos++
	}
	ids[pos] = clipEndToken
	return ids
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	var words []string
	word := ""
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if word != "" {
				words = append(words, word)
				word = ""
			}
		} else {
			word += string(r)
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

// HashString returns a deterministic hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
