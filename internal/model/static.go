package model

import "context"

// NoopAnnotator returns empty annotations. Used when no sidecar is configured;
// frames are still indexed, just without captions or character labels.
type NoopAnnotator struct{}

func (NoopAnnotator) Caption(context.Context, string) (string, error) {
	return "", nil
}

func (NoopAnnotator) Characters(context.Context, string) ([]string, error) {
	return []string{}, nil
}

// StaticAnnotator returns canned annotations keyed by image path. Intended for
// tests.
type StaticAnnotator struct {
	Captions map[string]string
	Tags     map[string][]string
	Err      error
}

func (s *StaticAnnotator) Caption(_ context.Context, imagePath string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Captions[imagePath], nil
}

func (s *StaticAnnotator) Characters(_ context.Context, imagePath string) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	tags, ok := s.Tags[imagePath]
	if !ok {
		return []string{}, nil
	}
	return tags, nil
}
