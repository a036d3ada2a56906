package mediashim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// PackPayload serializes a descriptor and its ordered blobs into the
// wire format spec.md §6 names: an ASCII decimal length of the JSON
// header, a literal '!', the UTF-8 JSON, then the blobs concatenated in
// the order their BlobRef offsets were computed. Callers build blobs in
// the order they want them written and the offsets already baked into
// desc must agree with that order; PackPayload does not recompute them.
func PackPayload(desc PreprocessResult, blobs ...[]byte) ([]byte, error) {
	header, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("mediashim: marshal descriptor: %w", err)
	}

	out := make([]byte, 0, len(header)+32)
	out = append(out, []byte(strconv.Itoa(len(header)))...)
	out = append(out, '!')
	out = append(out, header...)
	for _, b := range blobs {
		out = append(out, b...)
	}
	return out, nil
}

// BlobsFor lays out blobs sequentially and returns their BlobRefs with
// offsets relative to the start of the binary segment (i.e. offset 0 is
// the first byte after the JSON header), matching what the descriptor's
// BlobRef entries must reference per spec.md §6.
func BlobsFor(names []string, blobs [][]byte) []BlobRef {
	refs := make([]BlobRef, len(names))
	offset := 0
	for i, name := range names {
		refs[i] = BlobRef{Name: name, Start: offset, End: offset + len(blobs[i])}
		offset += len(blobs[i])
	}
	return refs
}

// UnpackPayload is the inverse of PackPayload: given the full packed
// byte stream, it returns the decoded descriptor and the raw binary
// segment, from which callers slice blobs using the descriptor's
// BlobRef offsets.
func UnpackPayload(r io.Reader) (PreprocessResult, []byte, error) {
	br := bufio.NewReader(r)

	lengthStr, err := br.ReadString('!')
	if err != nil {
		return PreprocessResult{}, nil, fmt.Errorf("mediashim: read length prefix: %w", err)
	}
	lengthStr = lengthStr[:len(lengthStr)-1] // drop the '!'
	headerLen, err := strconv.Atoi(lengthStr)
	if err != nil {
		return PreprocessResult{}, nil, fmt.Errorf("mediashim: invalid length prefix %q: %w", lengthStr, err)
	}
	if headerLen < 0 {
		return PreprocessResult{}, nil, fmt.Errorf("mediashim: negative length prefix %d", headerLen)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return PreprocessResult{}, nil, fmt.Errorf("mediashim: read header: %w", err)
	}
	var desc PreprocessResult
	if err := json.Unmarshal(header, &desc); err != nil {
		return PreprocessResult{}, nil, fmt.Errorf("mediashim: unmarshal descriptor: %w", err)
	}

	blob, err := io.ReadAll(br)
	if err != nil {
		return PreprocessResult{}, nil, fmt.Errorf("mediashim: read binary segment: %w", err)
	}
	return desc, blob, nil
}

// Slice extracts the bytes a BlobRef names out of a packed payload's
// binary segment.
func (b BlobRef) Slice(segment []byte) ([]byte, error) {
	if b.Start < 0 || b.End > len(segment) || b.Start > b.End {
		return nil, fmt.Errorf("mediashim: blob %q range [%d,%d) out of bounds for %d-byte segment", b.Name, b.Start, b.End, len(segment))
	}
	return segment[b.Start:b.End], nil
}
