package trade

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// End-to-end pipeline over a real FileSink; only OCR and the model call are
// mocked out.
var _ = Describe("Pipeline", func() {
	var (
		tmpDir     string
		paths      Paths
		extractor  *mockExtractor
		structurer *mockStructurer
		service    *Service
		now        time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		paths = Paths{
			LogPath:     filepath.Join(tmpDir, "logs", "trade_log.jsonl"),
			ArtifactDir: filepath.Join(tmpDir, "output"),
			SummaryDir:  filepath.Join(tmpDir, "summaries"),
		}
		now = time.Date(2025, 7, 6, 14, 30, 0, 0, time.UTC)
		extractor = newMockExtractor()
		structurer = newMockStructurer()
		sink := NewFileSinkWithTimeSource(paths, &fixedTimeSource{now: now})
		service = NewServiceWithDeps(extractor, structurer, sink, &fixedIDGenerator{}, &fixedTimeSource{now: now})
	})

	When("processing a batch with one corrupt file in all mode", func() {
		var (
			folder string
			result *BatchResult
		)

		BeforeEach(func() {
			folder = filepath.Join(tmpDir, "charts")
			Expect(os.MkdirAll(folder, 0755)).To(Succeed())
			for _, name := range []string{"a.png", "b.jpg", "c.tiff", "broken.bmp"} {
				Expect(os.WriteFile(filepath.Join(folder, name), []byte("fake"), 0644)).To(Succeed())
			}
			extractor.failFor["broken.bmp"] = errors.New("cannot decode image")

			var err error
			result, err = service.ProcessFolder(folder, SaveAll)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should report the per-item outcomes", func() {
			Expect(result.Total).To(Equal(4))
			Expect(result.OK).To(Equal(3))
			Expect(result.Fail).To(Equal(1))
		})

		It("should append one log line per processed image", func() {
			Expect(readLogLines(paths.LogPath)).To(HaveLen(3))
		})

		It("should write one artifact per processed image", func() {
			entries, err := os.ReadDir(paths.ArtifactDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
		})

		It("should roll all processed images into one daily summary", func() {
			data, err := os.ReadFile(filepath.Join(paths.SummaryDir, "daily_summary_2025-07-06.json"))
			Expect(err).NotTo(HaveOccurred())

			var summary DailySummary
			Expect(json.Unmarshal(data, &summary)).To(Succeed())
			Expect(summary.TotalTrades).To(Equal(3))
			Expect(summary.TotalPnL).To(BeNumerically("~", 3*38.07, 1e-9))
		})
	})
})
