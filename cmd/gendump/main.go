package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"betterreads/internal/platform/logger"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const timestampLayout = "2006-01-02T15:04:05.000000"

type options struct {
	authors  int
	works    int
	dir      string
	compress string // none, gz or zst
	badEvery int
	seed     int64
}

func main() {
	var opts options
	flag.IntVar(&opts.authors, "authors", 1000, "number of author records")
	flag.IntVar(&opts.works, "works", 5000, "number of work records")
	flag.StringVar(&opts.dir, "out", ".", "output directory")
	flag.StringVar(&opts.compress, "compress", "gz", "compression: none, gz or zst")
	flag.IntVar(&opts.badEvery, "bad-every", 0, "write a malformed line every N records (0 never)")
	flag.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	log := logger.New("development", "info")

	authorsPath, worksPath, err := generate(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate dumps")
	}
	log.Info().
		Str("authors", authorsPath).
		Str("works", worksPath).
		Int("author_records", opts.authors).
		Int("work_records", opts.works).
		Msg("dumps written")
}

func generate(opts options) (authorsPath, worksPath string, err error) {
	ext := ".txt"
	switch opts.compress {
	case "", "none":
	case "gz":
		ext += ".gz"
	case "zst":
		ext += ".zst"
	default:
		return "", "", fmt.Errorf("unknown compression %q", opts.compress)
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return "", "", err
	}

	rng := rand.New(rand.NewSource(opts.seed))
	authorsPath = filepath.Join(opts.dir, "ol_dump_authors"+ext)
	worksPath = filepath.Join(opts.dir, "ol_dump_works"+ext)

	err = writeDump(authorsPath, opts.compress, func(w *bufio.Writer) error {
		for i := 1; i <= opts.authors; i++ {
			if err := writeLine(w, authorLine(rng, i), opts.badEvery > 0 && i%opts.badEvery == 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("write %s: %w", authorsPath, err)
	}

	err = writeDump(worksPath, opts.compress, func(w *bufio.Writer) error {
		for i := 1; i <= opts.works; i++ {
			if err := writeLine(w, workLine(rng, i, opts.authors), opts.badEvery > 0 && i%opts.badEvery == 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("write %s: %w", worksPath, err)
	}
	return authorsPath, worksPath, nil
}

func writeDump(path, compress string, fill func(w *bufio.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var zw io.WriteCloser
	switch compress {
	case "gz":
		zw = gzip.NewWriter(f)
	case "zst":
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		zw = enc
	}

	var dst io.Writer = f
	if zw != nil {
		dst = zw
	}
	bw := bufio.NewWriter(dst)
	if err := fill(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}

// writeLine writes one record line, cut in half when broken is set.
func writeLine(w *bufio.Writer, line string, broken bool) error {
	if broken {
		line = line[:len(line)/2]
	}
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

type keyRef struct {
	Key string `json:"key"`
}

type typedValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type authorRecord struct {
	Key          string     `json:"key"`
	Type         keyRef     `json:"type"`
	Name         string     `json:"name"`
	PersonalName string     `json:"personal_name,omitempty"`
	Revision     int        `json:"revision"`
	LastModified typedValue `json:"last_modified"`
}

type workAuthor struct {
	Type   keyRef `json:"type"`
	Author keyRef `json:"author"`
}

type workRecord struct {
	Key          string       `json:"key"`
	Type         keyRef       `json:"type"`
	Title        string       `json:"title"`
	Description  *typedValue  `json:"description,omitempty"`
	Authors      []workAuthor `json:"authors,omitempty"`
	Covers       []string     `json:"covers,omitempty"`
	Revision     int          `json:"revision"`
	Created      *typedValue  `json:"created,omitempty"`
	LastModified typedValue   `json:"last_modified"`
}

func authorLine(rng *rand.Rand, n int) string {
	key := fmt.Sprintf("/authors/OL%dA", n)
	modified := randomTime(rng).Format(timestampLayout)
	first, last := firstNames[rng.Intn(len(firstNames))], lastNames[rng.Intn(len(lastNames))]

	rec := authorRecord{
		Key:          key,
		Type:         keyRef{Key: "/type/author"},
		Name:         first + " " + last,
		Revision:     1 + rng.Intn(5),
		LastModified: typedValue{Type: "/type/datetime", Value: modified},
	}
	if rng.Intn(3) == 0 {
		rec.PersonalName = last + ", " + first
	}
	return dumpLine("/type/author", key, rec.Revision, modified, rec)
}

// workLine references authors up to 10% past the generated range so some
// names resolve to the unknown-author placeholder.
func workLine(rng *rand.Rand, n, authors int) string {
	key := fmt.Sprintf("/works/OL%dW", n)
	modified := randomTime(rng).Format(timestampLayout)

	rec := workRecord{
		Key:          key,
		Type:         keyRef{Key: "/type/work"},
		Title:        fmt.Sprintf("The %s of %s", randomWord(rng), randomWord(rng)),
		Revision:     1 + rng.Intn(10),
		LastModified: typedValue{Type: "/type/datetime", Value: modified},
	}
	if rng.Intn(2) == 0 {
		rec.Description = &typedValue{
			Type:  "/type/text",
			Value: fmt.Sprintf("A book about %s and %s.", randomWord(rng), randomWord(rng)),
		}
	}
	if authors > 0 {
		for i, n := 0, 1+rng.Intn(3); i < n; i++ {
			id := 1 + rng.Intn(authors+authors/10+1)
			rec.Authors = append(rec.Authors, workAuthor{
				Type:   keyRef{Key: "/type/author_role"},
				Author: keyRef{Key: fmt.Sprintf("/authors/OL%dA", id)},
			})
		}
	}
	for i, n := 0, rng.Intn(3); i < n; i++ {
		rec.Covers = append(rec.Covers, fmt.Sprintf("%d", 1000000+rng.Intn(9000000)))
	}
	if rng.Intn(4) != 0 {
		rec.Created = &typedValue{Type: "/type/datetime", Value: randomTime(rng).Format(timestampLayout)}
	}
	return dumpLine("/type/work", key, rec.Revision, modified, rec)
}

func dumpLine(typ, key string, revision int, modified string, rec any) string {
	body, err := json.Marshal(rec)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s\t%s\t%d\t%s\t%s", typ, key, revision, modified, body)
}

func randomTime(rng *rand.Rand) time.Time {
	start := time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration(rng.Int63n(int64(15 * 365 * 24 * time.Hour))))
}

func randomWord(rng *rand.Rand) string {
	return words[rng.Intn(len(words))]
}

var (
	firstNames = []string{"Ada", "Bram", "Clara", "Dmitri", "Elena", "Farid", "Grace", "Hiro", "Ines", "Jonas"}
	lastNames  = []string{"Okafor", "Lindqvist", "Moreau", "Tanaka", "Walsh", "Novak", "Reyes", "Haddad", "Keller", "Quinn"}
	words      = []string{
		"Adventure", "Mystery", "Journey", "Discovery", "Secrets", "Dreams", "Hope",
		"Love", "War", "Peace", "Science", "Nature", "Technology", "History", "Future",
		"Past", "Present", "Reality", "Imagination", "Wisdom", "Life", "Death",
		"Light", "Darkness", "World", "Universe", "Time", "Space", "Mind", "Soul",
	}
)
