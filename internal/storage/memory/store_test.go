package memory

import (
	"testing"

	"kakeibo/internal/storage"
	"kakeibo/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return New()
	})
}
