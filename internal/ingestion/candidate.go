package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clintjohnsn/pytchdeck/internal/types"
)

// SupportedCandidateExts are the file types read from the candidate directory.
var SupportedCandidateExts = []string{".pdf", ".txt", ".md", ".markdown", ".html", ".htm"}

// CandidateDocument is one file from the candidate directory.
type CandidateDocument struct {
	Path     string
	Text     string
	Metadata *Metadata
}

// CandidateProfile is the concatenated candidate context plus its sources.
type CandidateProfile struct {
	Documents []CandidateDocument
	Skipped   []string
}

// Context joins the document texts in path order.
func (p *CandidateProfile) Context() string {
	parts := make([]string, 0, len(p.Documents))
	for _, d := range p.Documents {
		parts = append(parts, d.Text)
	}
	return strings.Join(parts, "\n")
}

// LoadCandidateContext reads every supported document in dir and returns their joined text.
// A missing or empty directory, or one with no readable text, is an *types.InitializationError.
func LoadCandidateContext(ctx context.Context, dir string, logger *zap.Logger) (string, error) {
	profile, err := LoadCandidateProfile(ctx, dir, logger)
	if err != nil {
		return "", err
	}
	return profile.Context(), nil
}

// LoadCandidateProfile is LoadCandidateContext keeping per-document detail.
func LoadCandidateProfile(ctx context.Context, dir string, logger *zap.Logger) (*CandidateProfile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &types.InitializationError{Message: fmt.Sprintf("candidate directory %s not setup or empty", dir), Cause: err}
	}

	var paths, skipped []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if isSupportedCandidateFile(path) {
			paths = append(paths, path)
		} else {
			skipped = append(skipped, path)
		}
		return nil
	})
	if err != nil {
		return nil, &types.InitializationError{Message: "failed to scan candidate directory", Cause: err}
	}
	for _, s := range skipped {
		logger.Warn("skipping unsupported candidate document", zap.String("path", s))
	}
	if len(paths) == 0 {
		return nil, &types.InitializationError{Message: fmt.Sprintf("candidate directory %s not setup or empty", dir)}
	}
	sort.Strings(paths)

	docs := make([]CandidateDocument, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			text, err := loadDocument(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			meta := NewMetadata(text, "")
			meta.Path = path
			docs[i] = CandidateDocument{Path: path, Text: text, Metadata: meta}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &types.InitializationError{Message: "failed to read candidate documents", Cause: err}
	}

	profile := &CandidateProfile{Skipped: skipped}
	for _, d := range docs {
		if d.Text == "" {
			logger.Warn("candidate document has no text", zap.String("path", d.Path))
			continue
		}
		profile.Documents = append(profile.Documents, d)
	}
	if len(profile.Documents) == 0 {
		return nil, &types.InitializationError{Message: fmt.Sprintf("candidate directory %s has no readable text", dir)}
	}

	logger.Info("loaded candidate context",
		zap.Int("documents", len(profile.Documents)),
		zap.Int("chars", len(profile.Context())),
	)
	return profile, nil
}

func isSupportedCandidateFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedCandidateExts {
		if ext == e {
			return true
		}
	}
	return false
}

// loadDocument picks a langchaingo loader by extension and returns the cleaned text.
func loadDocument(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var loader documentloaders.Loader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		st, err := f.Stat()
		if err != nil {
			return "", err
		}
		loader = documentloaders.NewPDF(f, st.Size())
	case ".html", ".htm":
		loader = documentloaders.NewHTML(f)
	default:
		loader = documentloaders.NewText(f)
	}

	pages, err := loader.Load(ctx)
	if err != nil {
		return "", err
	}
	return CleanText(joinPages(pages)), nil
}

func joinPages(pages []schema.Document) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.PageContent)
	}
	return strings.Join(parts, "\n")
}
