// Package parser reads structure manifests: YAML descriptors listing the
// chains, residues and non-polymer content of a structure. Manifests carry both
// label and auth identifiers for every chain so either addressing mode can be
// projected from the same file.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/seqsync/internal/addressing"
	"github.com/starford/seqsync/internal/models"
)

// DefaultAtomsPerResidue is used when a chain does not declare its own.
const DefaultAtomsPerResidue = 8

// oneLetterCodes matches a normalised sequence. Residue n is byte n.
var oneLetterCodes = regexp.MustCompile(`^[A-Z]+$`)

// Structure is a parsed manifest.
type Structure struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Chains  []Chain  `yaml:"chains"`
	Ligands []Ligand `yaml:"ligands"`
	Waters  int      `yaml:"waters"`
}

// Chain describes one polymer chain.
type Chain struct {
	LabelID  string `yaml:"label_id"`
	AuthID   string `yaml:"auth_id"`
	Name     string `yaml:"name"`
	Sequence string `yaml:"sequence"`
	// Start is the label sequence number of the first residue.
	Start int `yaml:"start"`
	// Positions lists label sequence numbers for gapped chains. When set it
	// overrides Start and must match Sequence in length.
	Positions []int `yaml:"positions"`
	// AuthOffset maps label to auth numbering: auth = label + AuthOffset.
	AuthOffset int `yaml:"auth_offset"`
	// Secondary holds one of H, E or - per residue.
	Secondary       string `yaml:"secondary"`
	AtomsPerResidue int    `yaml:"atoms_per_residue"`
}

// Ligand is a non-polymer group attached to a chain.
type Ligand struct {
	Name  string `yaml:"name"`
	Chain string `yaml:"chain"`
	Atoms int    `yaml:"atoms"`
}

// Residue is one residue of a chain in both numbering schemes.
type Residue struct {
	Code      string
	LabelSeq  int
	AuthSeq   int
	Secondary models.SecondaryStructure
}

// Parse decodes and validates a manifest, filling defaults.
func Parse(data []byte) (*Structure, error) {
	var s Structure
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parser: decode manifest: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("parser: invalid manifest %q: %w", s.ID, err)
	}
	return &s, nil
}

func (s *Structure) applyDefaults() {
	for i := range s.Chains {
		c := &s.Chains[i]
		c.Sequence = strings.ToUpper(strings.Join(strings.Fields(c.Sequence), ""))
		if c.AuthID == "" {
			c.AuthID = c.LabelID
		}
		if c.Start == 0 && len(c.Positions) == 0 {
			c.Start = 1
		}
		if c.AtomsPerResidue <= 0 {
			c.AtomsPerResidue = DefaultAtomsPerResidue
		}
	}
}

// Validate checks the manifest.
func (s *Structure) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Chains, validation.Required),
		validation.Field(&s.Waters, validation.Min(0)),
	); err != nil {
		return err
	}
	labels := make(map[string]struct{}, len(s.Chains))
	auths := make(map[string]struct{}, len(s.Chains))
	for i := range s.Chains {
		c := &s.Chains[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("chain %d: %w", i, err)
		}
		if _, dup := labels[c.LabelID]; dup {
			return fmt.Errorf("duplicate label chain id %q", c.LabelID)
		}
		if _, dup := auths[c.AuthID]; dup {
			return fmt.Errorf("duplicate auth chain id %q", c.AuthID)
		}
		labels[c.LabelID] = struct{}{}
		auths[c.AuthID] = struct{}{}
	}
	for i := range s.Ligands {
		l := &s.Ligands[i]
		if err := validation.ValidateStruct(l,
			validation.Field(&l.Name, validation.Required),
			validation.Field(&l.Chain, validation.Required, validation.In(anySlice(labels)...)),
			validation.Field(&l.Atoms, validation.Required, validation.Min(1)),
		); err != nil {
			return fmt.Errorf("ligand %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single chain.
func (c *Chain) Validate() error {
	n := len(c.Sequence)
	return validation.ValidateStruct(c,
		validation.Field(&c.LabelID, validation.Required),
		validation.Field(&c.Sequence, validation.Required,
			validation.Match(oneLetterCodes).Error("must contain only one-letter residue codes A-Z")),
		validation.Field(&c.Positions, validation.When(len(c.Positions) > 0,
			validation.Length(n, n),
			validation.By(strictlyIncreasing),
		)),
		validation.Field(&c.Secondary, validation.When(c.Secondary != "",
			validation.Length(n, n),
			validation.By(secondaryCodes),
		)),
	)
}

func strictlyIncreasing(value interface{}) error {
	ps, _ := value.([]int)
	for i := 1; i < len(ps); i++ {
		if ps[i] <= ps[i-1] {
			return errors.New("must be strictly increasing")
		}
	}
	return nil
}

func secondaryCodes(value interface{}) error {
	s, _ := value.(string)
	for _, r := range s {
		if r != 'H' && r != 'E' && r != '-' {
			return fmt.Errorf("unknown secondary structure code %q", r)
		}
	}
	return nil
}

func anySlice(set map[string]struct{}) []interface{} {
	out := make([]interface{}, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Residues expands the chain into per-residue records.
func (c *Chain) Residues() []Residue {
	out := make([]Residue, len(c.Sequence))
	for i := 0; i < len(c.Sequence); i++ {
		label := c.Start + i
		if len(c.Positions) > 0 {
			label = c.Positions[i]
		}
		r := Residue{
			Code:     c.Sequence[i : i+1],
			LabelSeq: label,
			AuthSeq:  label + c.AuthOffset,
		}
		if c.Secondary != "" {
			switch c.Secondary[i] {
			case 'H':
				r.Secondary = models.SecondaryHelix
			case 'E':
				r.Secondary = models.SecondarySheet
			default:
				r.Secondary = models.SecondaryLoop
			}
		}
		out[i] = r
	}
	return out
}

// ChainID returns the chain identifier in the given mode.
func (c *Chain) ChainID(mode addressing.Mode) string {
	if mode == addressing.Auth {
		return c.AuthID
	}
	return c.LabelID
}

// SequenceData projects the manifest into the sequence view using one
// addressing mode for chain ids and residue positions.
func (s *Structure) SequenceData(mode addressing.Mode) *models.SequenceData {
	data := &models.SequenceData{ID: s.ID, Name: s.Name, Chains: make([]models.SequenceChain, len(s.Chains))}
	if data.Name == "" {
		data.Name = s.ID
	}
	for i := range s.Chains {
		c := &s.Chains[i]
		id := c.ChainID(mode)
		sc := models.SequenceChain{ID: id, Name: c.Name}
		for _, r := range c.Residues() {
			pos := r.LabelSeq
			if mode == addressing.Auth {
				pos = r.AuthSeq
			}
			sc.Residues = append(sc.Residues, models.SequenceResidue{
				ChainID:            id,
				Position:           pos,
				Code:               r.Code,
				SecondaryStructure: r.Secondary,
			})
		}
		data.Chains[i] = sc
	}
	return data
}
