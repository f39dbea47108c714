package similarity

import (
	"errors"
	"fmt"

	"github.com/wolfman30/clinic-autoresponder/internal/embedding"
)

func wrapEmbeddingErr(err error) error {
	if err == nil {
		return fmt.Errorf("%w: empty query vector", embedding.ErrEmbeddingFailed)
	}
	if errors.Is(err, embedding.ErrEmbeddingFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", embedding.ErrEmbeddingFailed, err)
}
