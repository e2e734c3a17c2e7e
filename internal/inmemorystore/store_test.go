package inmemorystore

import (
	"testing"

	"github.com/specialistvlad/paramgrid/internal/statestore"
	"github.com/specialistvlad/paramgrid/internal/statestore/storetest"
)

var _ statestore.Store = (*Store)(nil)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) statestore.Store { return New() })
}
