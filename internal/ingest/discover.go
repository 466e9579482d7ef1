package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// frameNamePattern matches extracted frame files: frame_00042.jpg. The number
// is the extraction sequence; timestamp = number x sampling interval.
var frameNamePattern = regexp.MustCompile(`^frame_(\d+)\.(?:jpg|jpeg|png)$`)

// discoveredFrame is one frame file found on disk, before any curation.
type discoveredFrame struct {
	// RelPath is the record key: "<episode>/<file>".
	RelPath string
	// AbsPath locates the file for decoding and embedding.
	AbsPath string
	FileName string
	Number   int
}

// episodeDir is one episode directory under the frames root.
type episodeDir struct {
	ID     string
	Path   string
	Frames []discoveredFrame
	// Length is the estimated episode length in seconds: the highest frame
	// number times the sampling interval.
	Length float64
}

// discoverEpisodes scans framesDir for episode subdirectories and their frame
// files. Frames are returned sorted by frame number. Files not matching the
// frame naming pattern are ignored.
func discoverEpisodes(framesDir string, interval float64) ([]episodeDir, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, fmt.Errorf("read frames directory: %w", err)
	}
	var episodes []episodeDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ep := episodeDir{ID: entry.Name(), Path: filepath.Join(framesDir, entry.Name())}
		files, err := os.ReadDir(ep.Path)
		if err != nil {
			return nil, fmt.Errorf("read episode directory %s: %w", ep.ID, err)
		}
		maxNumber := 0
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			m := frameNamePattern.FindStringSubmatch(f.Name())
			if m == nil {
				continue
			}
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			ep.Frames = append(ep.Frames, discoveredFrame{
				RelPath:  ep.ID + "/" + f.Name(),
				AbsPath:  filepath.Join(ep.Path, f.Name()),
				FileName: f.Name(),
				Number:   num,
			})
			if num > maxNumber {
				maxNumber = num
			}
		}
		sort.Slice(ep.Frames, func(i, j int) bool { return ep.Frames[i].Number < ep.Frames[j].Number })
		ep.Length = float64(maxNumber) * interval
		episodes = append(episodes, ep)
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].ID < episodes[j].ID })
	return episodes, nil
}
