// Package model defines the boundary to the external annotation models that
// produce frame captions and character labels. The heavy models run out of
// process; this package only knows how to ask them.
package model

import "context"

// Captioner produces a short natural-language caption for a frame image.
type Captioner interface {
	Caption(ctx context.Context, imagePath string) (string, error)
}

// CharacterTagger identifies which known characters appear in a frame image.
type CharacterTagger interface {
	Characters(ctx context.Context, imagePath string) ([]string, error)
}

// Annotator bundles both annotation concerns behind one handle.
type Annotator interface {
	Captioner
	CharacterTagger
}
