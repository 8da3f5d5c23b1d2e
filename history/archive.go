package history

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/rustyeddy/marketsim/market"
)

// archiveLayout matches the "20160103 170000" timestamps in year files.
const archiveLayout = "20060102 150405"

// ArchiveLoader reads bulk one-minute year archives named
// DAT_ASCII_<PAIR>_M1_<YEAR>.csv, optionally .gz or .xz compressed, with
// semicolon-separated "timestamp;open;high;low;close;volume" lines.
type ArchiveLoader struct {
	Dir string
	// Zone the file timestamps are quoted in. Vendor files use a fixed
	// UTC-5 clock with no daylight saving; nil keeps timestamps as-is.
	Zone *time.Location
}

func NewArchiveLoader(dir string) *ArchiveLoader {
	return &ArchiveLoader{Dir: dir}
}

// Load reads the year archive for the instrument into a minute series.
// Malformed lines are skipped; an archive with no valid rows is an error.
func (l *ArchiveLoader) Load(instrument string, year int) (market.Series, error) {
	r, closer, err := l.open(instrument, year)
	if err != nil {
		return nil, err
	}
	defer closer()

	zone := l.Zone
	if zone == nil {
		zone = time.UTC
	}

	series := market.Series{}
	bad := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "time;") || strings.HasPrefix(line, "Time;") {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 5 {
			bad++
			continue
		}

		ts, err := time.ParseInLocation(archiveLayout, parts[0], zone)
		if err != nil {
			bad++
			continue
		}

		var prices [4]market.Price
		ok := true
		for i := 0; i < 4; i++ {
			f, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				ok = false
				break
			}
			prices[i] = market.FromFloat(f)
		}
		if !ok {
			bad++
			continue
		}

		series[ts.UTC()] = market.Candle{
			Open:  prices[0],
			High:  prices[1],
			Low:   prices[2],
			Close: prices[3],
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read archive %s %d: %w", instrument, year, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("archive %s %d: no valid rows (%d bad lines)", instrument, year, bad)
	}

	return series, nil
}

// open resolves the archive file, trying plain, gzip and xz variants.
func (l *ArchiveLoader) open(instrument string, year int) (io.Reader, func() error, error) {
	pair := strings.ReplaceAll(instrument, "_", "")
	base := filepath.Join(l.Dir, fmt.Sprintf("DAT_ASCII_%s_M1_%d.csv", pair, year))

	for _, name := range []string{base, base + ".gz", base + ".xz"} {
		f, err := os.Open(name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, fmt.Errorf("open archive: %w", err)
		}

		switch filepath.Ext(name) {
		case ".gz":
			zr, err := gzip.NewReader(f)
			if err != nil {
				f.Close()
				return nil, nil, fmt.Errorf("open archive %s: %w", name, err)
			}
			return zr, func() error { zr.Close(); return f.Close() }, nil
		case ".xz":
			xr, err := xz.NewReader(f)
			if err != nil {
				f.Close()
				return nil, nil, fmt.Errorf("open archive %s: %w", name, err)
			}
			return xr, f.Close, nil
		default:
			return f, f.Close, nil
		}
	}

	return nil, nil, fmt.Errorf("archive %s %d: no file under %s", instrument, year, l.Dir)
}
