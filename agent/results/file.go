package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

// FileStore writes <dir>/<listingId>.json.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("results directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(ctx context.Context, eval contractx.AggregatedEvaluation) error {
	if err := contractx.Validate(eval); err != nil {
		return err
	}
	path, err := s.path(eval.ListingID)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(eval, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}

	// Readers never observe a partial document.
	tmp, err := os.CreateTemp(s.dir, ".eval-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write evaluation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close evaluation: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename evaluation: %w", err)
	}

	log.Info().Str("listing_id", eval.ListingID).Str("path", path).Msg("evaluation saved")
	return nil
}

func (s *FileStore) Load(ctx context.Context, listingID string) (contractx.AggregatedEvaluation, error) {
	path, err := s.path(listingID)
	if err != nil {
		return contractx.AggregatedEvaluation{}, err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return contractx.AggregatedEvaluation{}, ErrResultNotFound
	}
	if err != nil {
		return contractx.AggregatedEvaluation{}, fmt.Errorf("read evaluation: %w", err)
	}

	var eval contractx.AggregatedEvaluation
	if err := json.Unmarshal(raw, &eval); err != nil {
		return contractx.AggregatedEvaluation{}, fmt.Errorf("%w: decode %s: %v", contractx.ErrSchemaViolation, path, err)
	}
	return eval, nil
}

func (s *FileStore) path(listingID string) (string, error) {
	id := strings.TrimSpace(listingID)
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: invalid listing id %q", contractx.ErrValidation, listingID)
	}
	return filepath.Join(s.dir, id+".json"), nil
}
