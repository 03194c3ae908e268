package mcpserver

// AddressingContract explains how residues are addressed, so LLM consumers
// pick the right chain ids and numbers before calling selection or visibility
// tools.
const AddressingContract = `# seqsync Addressing Contract

Every residue is addressed by a chain id and a residue number. A session uses
exactly one numbering scheme for both, reported by the ` + "`" + `list_chains` + "`" + ` tool.

## Schemes

- **label** (default): chain ids are label_asym_id values (A, B, ...) and
  residue numbers are label_seq_id, counting from 1 along the deposited polymer.
- **auth**: chain ids are the author's chain names (H, L, ...) and residue
  numbers are auth_seq_id. Author numbering may start anywhere, including zero
  or negative numbers, and may skip values.

Never mix schemes: a label chain id does not resolve in an auth session.

## Ranges

- Ranges are inclusive on both ends: ` + "`" + `A 10-20` + "`" + ` covers 11 residues.
- ` + "`" + `start` + "`" + ` must not exceed ` + "`" + `end` + "`" + `.
- Positions missing from a gapped chain read as ` + "`" + `-` + "`" + ` in selected sequence text.

## Visibility

- ` + "`" + `hide` + "`" + ` removes a chain or range from every visible component.
- ` + "`" + `isolate_chain` + "`" + ` hides every other chain. With a single chain it does nothing.
- ` + "`" + `isolate_range` + "`" + ` hides everything outside the range, other chains included.
- Hiding cannot be undone piecemeal. ` + "`" + `show_all` + "`" + ` reloads the structure and is the only
  way to bring hidden atoms back.
- Only one visibility operation runs at a time; a concurrent request fails with
  "operation in progress" and can simply be retried.
- Loading another structure clears the selection and discards visibility work
  still running against the previous one.

## Residue actions

` + "`" + `residue_action` + "`" + ` accepts hide, isolate, highlight and copy. Copy places the
range's one-letter sequence on the clipboard.
`
