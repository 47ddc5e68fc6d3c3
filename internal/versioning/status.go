package versioning

import (
	"time"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// DeriveStatus maps a validity end date to a status: repealed when the
// version has an end date, in force otherwise.
func DeriveStatus(validTo *time.Time) catalog.Status {
	if validTo != nil {
		return catalog.StatusRepealed
	}
	return catalog.StatusInForce
}

// ApplyChainStatus sets the status of every row in the chain. The current row
// carries its date-derived status; every other row has been replaced by a
// later version and is superseded.
func ApplyChainStatus(chain *catalog.Chain) {
	apply := func(row *catalog.Article) {
		if row.IsCurrent {
			row.Status = DeriveStatus(row.ValidTo)
			return
		}
		row.Status = catalog.StatusSuperseded
	}
	apply(&chain.Base)
	for i := range chain.Updates {
		apply(&chain.Updates[i])
	}
}
