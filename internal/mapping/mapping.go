// Package mapping implements the crosswalk from legacy source records into
// the bibliographic (MODS) and institutional (SLUB) target documents.
//
// Every mapper is an idempotent upsert: running it again on an unchanged
// source resolves to the nodes created by the previous run and signals no
// change.
package mapping

import (
	"fmt"

	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// Mapper maps one field group of a source record into the target documents.
type Mapper interface {
	Name() string
	Map(src *source.Record, mods, slub *xmltree.Node, changes *Changes) error
}

// Options configures the mappers that depend on deployment data.
type Options struct {
	// Aliases remaps significant institution names before token derivation.
	Aliases map[string]string
	// Distributor is the publisher named in the distribution event.
	Distributor string
	// DistributorPlace is the place named in the distribution event.
	DistributorPlace string
}

// Mappers returns all mappers in their fixed execution order.
func Mappers(opts Options) []Mapper {
	return []Mapper{
		TitleMapper{},
		PersonMapper{},
		InstitutionMapper{Aliases: opts.Aliases},
		IdentifierMapper{},
		PublicationInfoMapper{},
		DistributionInfoMapper{Publisher: opts.Distributor, Place: opts.DistributorPlace},
		AdministrativeInfoMapper{},
		ContactInfoMapper{},
		ContentualMapper{},
		ReferencesMapper{},
		RightsMapper{},
		TechnicalInfoMapper{},
	}
}

// Error reports a mapper invariant violation, e.g. an unknown vocabulary key.
type Error struct {
	Mapper string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s mapper: %v", e.Mapper, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Apply runs the mappers sequentially over the target documents. The first
// mapper error stops the run; the returned Changes reflect the mutations
// made up to that point.
func Apply(src *source.Record, mods, slub *xmltree.Node, mappers []Mapper) (*Changes, error) {
	changes := &Changes{}
	for _, m := range mappers {
		if err := m.Map(src, mods, slub, changes); err != nil {
			return changes, &Error{Mapper: m.Name(), Err: err}
		}
	}
	return changes, nil
}
