// Package linker implements first-fit placement of relocatable sections
// around absolute segments, external-symbol resolution, and image
// output (spec §4.8, §6.2).
package linker

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/uh-mickwal/cdm8toolchain/internal/objfmt"
)

const imageSize = 256

// DefaultLowBound is the placement floor unless -z (allow from 0) is set.
const DefaultLowBound = 0x20

// taken is one reserved absolute byte range.
type taken struct {
	start, length int
	file          string
}

// section is one relocatable section's linker-side bookkeeping.
type section struct {
	file    string
	data    []byte
	rel     []int
	ents    map[string]int
	start   int
	placed  bool
	reached bool
}

// entryLoc locates one globally-unique entry point.
type entryLoc struct {
	section string // "$abs" or a relocatable section name
	offset  int
}

// extSite is one external fix-up site.
type extSite struct {
	section string
	offset  int
}

// Linker accumulates one or more object files and produces a 256-byte
// image (spec §4.8).
type Linker struct {
	img   [imageSize]byte
	taken []taken

	absEntries map[string]int // name -> offset, within $abs
	sects      map[string]*section
	sectOrder  []string

	entries map[string]entryLoc // globally unique across $abs + all sections
	xtrns   map[string][]extSite
}

// New creates an empty Linker.
func New() *Linker {
	return &Linker{
		absEntries: map[string]int{},
		sects:      map[string]*section{},
		entries:    map[string]entryLoc{},
		xtrns:      map[string][]extSite{},
	}
}

// Ingest adds one parsed object file's contents, checking for absolute
// segment clashes and entry-point uniqueness as it goes (spec §4.8
// "Clash detection", "Entry table").
func (l *Linker) Ingest(file string, f *objfmt.File) error {
	for _, seg := range f.AbsSegments {
		if err := l.reserve(file, seg.Start, len(seg.Bytes)); err != nil {
			return err
		}
		for i, b := range seg.Bytes {
			l.img[(seg.Start+i)&0xff] = b
		}
	}

	for name, off := range f.AbsEntries {
		if err := l.addEntry(name, "$abs", off); err != nil {
			return err
		}
		l.absEntries[name] = off
	}

	for _, s := range f.Sections {
		if _, exists := l.sects[s.Name]; exists {
			return fmt.Errorf("section %q defined in more than one input file", s.Name)
		}
		l.sects[s.Name] = &section{
			file: file,
			data: append([]byte(nil), s.Data...),
			rel:  append([]int(nil), s.Rel...),
			ents: s.Entries,
		}
		l.sectOrder = append(l.sectOrder, s.Name)
		for name, off := range s.Entries {
			if err := l.addEntry(name, s.Name, off); err != nil {
				return err
			}
		}
	}

	for name, sites := range f.Externals {
		for _, s := range sites {
			l.xtrns[name] = append(l.xtrns[name], extSite{section: s.Section, offset: s.Offset})
		}
	}

	return nil
}

func (l *Linker) reserve(file string, start, length int) error {
	for _, t := range l.taken {
		if overlaps(start, length, t.start, t.length) {
			return fmt.Errorf("ABS segment %#02x..%#02x in %q overlaps segment in %q", start, start+length, file, t.file)
		}
	}
	if start < 0 || start+length > imageSize {
		return fmt.Errorf("ABS segment %#02x..%#02x in %q out of range", start, start+length, file)
	}
	l.taken = append(l.taken, taken{start: start, length: length, file: file})
	return nil
}

func overlaps(a, alen, b, blen int) bool {
	return a < b+blen && b < a+alen
}

func (l *Linker) addEntry(name, sect string, off int) error {
	if _, exists := l.entries[name]; exists {
		return fmt.Errorf("entry point %q defined more than once", name)
	}
	l.entries[name] = entryLoc{section: sect, offset: off}
	return nil
}

// SelectAbsolute restricts linking to absolute segments only (spec §4.8
// "absolute mode").
func (l *Linker) SelectAbsolute() {
	for _, s := range l.sects {
		s.reached = false
	}
}

// SelectRelative requires a "main" section and loads its reachability
// closure via the ext->entry-section relation, dropping everything
// else (spec §4.8 "relative mode").
func (l *Linker) SelectRelative() error {
	if _, ok := l.sects["main"]; !ok {
		return fmt.Errorf("relative mode requires a %q section", "main")
	}
	queue := []string{"main"}
	l.sects["main"].reached = true
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for extName, sites := range l.xtrns {
			usesIt := false
			for _, s := range sites {
				if s.section == name {
					usesIt = true
					break
				}
			}
			if !usesIt {
				continue
			}
			loc, ok := l.entries[extName]
			if !ok || loc.section == "$abs" {
				continue
			}
			target := l.sects[loc.section]
			if target != nil && !target.reached {
				target.reached = true
				queue = append(queue, loc.section)
			}
		}
	}
	return nil
}

// SelectAll marks every ingested section reachable (used when no
// -a/-r mode restriction is requested).
func (l *Linker) SelectAll() {
	for _, s := range l.sects {
		s.reached = true
	}
}

// region is one free byte range available for placement.
type region struct {
	start, length int
}

// Place runs the first-fit placement algorithm over every reached
// section (spec §4.8 "Placement algorithm").
func (l *Linker) Place(lowBound int) error {
	regions := l.freeRegions(lowBound)

	type work struct {
		name string
		size int
	}
	var items []work
	for _, name := range l.sectOrder {
		s := l.sects[name]
		if !s.reached {
			continue
		}
		items = append(items, work{name: name, size: len(s.data)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].size > items[j].size })
	sort.Slice(regions, func(i, j int) bool { return regions[i].length < regions[j].length })

	for _, it := range items {
		idx := -1
		for i, r := range regions {
			if r.length >= it.size {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("section %q (size %d) does not fit in free memory", it.name, it.size)
		}

		s := l.sects[it.name]
		s.start = regions[idx].start
		s.placed = true

		for i, b := range s.data {
			l.img[(s.start+i)&0xff] = b
		}
		for _, off := range s.rel {
			l.img[(s.start+off)&0xff] = byte((int(l.img[(s.start+off)&0xff]) + s.start) & 0xff)
		}

		if regions[idx].length == it.size {
			regions = append(regions[:idx], regions[idx+1:]...)
		} else {
			regions[idx].start += it.size
			regions[idx].length -= it.size
			sort.Slice(regions, func(i, j int) bool { return regions[i].length < regions[j].length })
		}
	}
	return nil
}

func (l *Linker) freeRegions(lowBound int) []region {
	taken := append([]taken(nil), l.taken...)
	sort.Slice(taken, func(i, j int) bool { return taken[i].start < taken[j].start })

	var regions []region
	cursor := lowBound
	for _, t := range taken {
		start := t.start
		if start > cursor {
			regions = append(regions, region{start: cursor, length: start - cursor})
		}
		if t.start+t.length > cursor {
			cursor = t.start + t.length
		}
	}
	if cursor < imageSize {
		regions = append(regions, region{start: cursor, length: imageSize - cursor})
	}
	return regions
}

// ResolveExternals fixes up every external reference site by adding the
// defined address to the byte already written there (spec §4.8
// "External resolution").
func (l *Linker) ResolveExternals() error {
	for name, sites := range l.xtrns {
		loc, ok := l.entries[name]
		if !ok {
			if len(sites) == 0 {
				continue
			}
			return fmt.Errorf("unresolved external %q", name)
		}

		addr := loc.offset
		if loc.section != "$abs" {
			sect, ok := l.sects[loc.section]
			if !ok || !sect.placed {
				return fmt.Errorf("external %q resolves to unplaced section %q", name, loc.section)
			}
			addr = sect.start + loc.offset
		}

		for _, site := range sites {
			sect, ok := l.sects[site.section]
			if !ok || !sect.placed {
				return fmt.Errorf("external fix-up site in unplaced section %q", site.section)
			}
			at := (sect.start + site.offset) & 0xff
			l.img[at] = byte((int(l.img[at]) + addr) & 0xff)
		}
	}
	return nil
}

// Image returns the final 256-byte output image.
func (l *Linker) Image() [256]byte { return l.img }

// WriteRaw renders the "v2.0 raw" image format (spec §6.2).
func (l *Linker) WriteRaw() string {
	s := "v2.0 raw\n"
	for _, b := range l.img {
		s += fmt.Sprintf("%02x\n", b)
	}
	return s
}

// WriteSym renders the "v1.0 sym" image format: the full image on one
// colon-joined line, followed by "name:hh" entry lines (spec §6.2).
func (l *Linker) WriteSym() string {
	s := "v1.0 sym\n"
	for i, b := range l.img {
		if i > 0 {
			s += ":"
		}
		s += fmt.Sprintf("%02x", b)
	}
	s += "\n"

	names := make([]string, 0, len(l.entries))
	for n := range l.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		loc := l.entries[n]
		addr := loc.offset
		if loc.section != "$abs" {
			addr = l.sects[loc.section].start + loc.offset
		}
		s += fmt.Sprintf("%s:%02x\n", n, addr&0xff)
	}
	return s
}

// WriteCrypt renders the encrypted image: a header carrying a 12-digit
// seed, then 256 lines each XOR-masked by a pseudo-random byte stream
// seeded from that header (spec §6.2). The scrambler is intentionally
// non-cryptographic (an obfuscation format for a pedagogical toolchain,
// not a security boundary), so the standard library's math/rand
// supplies the stream.
func (l *Linker) WriteCrypt(seed int64) string {
	s := fmt.Sprintf("v2.0 crypt%012d\n", seed)
	rng := rand.New(rand.NewSource(seed))
	for _, b := range l.img {
		mask := byte(rng.Intn(256))
		s += fmt.Sprintf("%02x\n", b^mask)
	}
	return s
}
