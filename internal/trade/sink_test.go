package trade

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fixedTimeSource returns a constant time for deterministic file names
type fixedTimeSource struct {
	now time.Time
}

func (t *fixedTimeSource) Now() time.Time {
	return t.now
}

func readLogLines(path string) []Record {
	f, err := os.Open(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		Expect(json.Unmarshal(scanner.Bytes(), &rec)).To(Succeed())
		records = append(records, rec)
	}
	Expect(scanner.Err()).NotTo(HaveOccurred())
	return records
}

var _ = Describe("FileSink", func() {
	var (
		tmpDir string
		paths  Paths
		sink   *FileSink
		rec    *Record
		now    time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		paths = Paths{
			LogPath:     filepath.Join(tmpDir, "logs", "trade_log.jsonl"),
			ArtifactDir: filepath.Join(tmpDir, "output"),
			SummaryDir:  filepath.Join(tmpDir, "summaries"),
		}
		now = time.Date(2025, 7, 6, 14, 30, 0, 0, time.UTC)
		sink = NewFileSinkWithTimeSource(paths, &fixedTimeSource{now: now})

		rec = &Record{
			TradeID:       "ab12cd34",
			Ticker:        ptr("SOLUSD"),
			Direction:     ptr("long"),
			PnL:           ptr("+38.07 USD"),
			PnLAmount:     ptr(38.07),
			ImageSource:   ptr("solusd.png"),
			LoggedAt:      now,
			OCRConfidence: "87.2%",
		}
	})

	Describe("Save", func() {
		When("using log-only mode", func() {
			var (
				saved []string
				err   error
			)

			JustBeforeEach(func() {
				saved, err = sink.Save(rec, SaveLogOnly)
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should create the log's containing directory", func() {
				Expect(filepath.Dir(paths.LogPath)).To(BeADirectory())
			})

			It("should append exactly one line", func() {
				records := readLogLines(paths.LogPath)
				Expect(records).To(HaveLen(1))
				Expect(records[0].TradeID).To(Equal("ab12cd34"))
			})

			It("should touch only the log", func() {
				Expect(saved).To(Equal([]string{paths.LogPath}))
				Expect(paths.ArtifactDir).NotTo(BeADirectory())
				Expect(paths.SummaryDir).NotTo(BeADirectory())
			})
		})

		When("appending repeatedly", func() {
			It("should never rewrite earlier lines", func() {
				for i := 0; i < 3; i++ {
					_, err := sink.Save(rec, SaveLogOnly)
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(readLogLines(paths.LogPath)).To(HaveLen(3))
			})
		})

		When("using log+artifact mode", func() {
			var saved []string

			JustBeforeEach(func() {
				var err error
				saved, err = sink.Save(rec, SaveArtifact)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should name the artifact by trade id and timestamp", func() {
				expected := filepath.Join(paths.ArtifactDir, "trade_ab12cd34_20250706_143000.json")
				Expect(saved).To(Equal([]string{paths.LogPath, expected}))
				Expect(expected).To(BeAnExistingFile())
			})

			It("should round-trip the record through the artifact file", func() {
				data, err := os.ReadFile(saved[1])
				Expect(err).NotTo(HaveOccurred())

				var got Record
				Expect(json.Unmarshal(data, &got)).To(Succeed())
				Expect(got).To(Equal(*rec))
			})

			It("should not create a daily summary", func() {
				Expect(paths.SummaryDir).NotTo(BeADirectory())
			})
		})

		When("using log+aggregate mode", func() {
			var summaryPath string

			BeforeEach(func() {
				summaryPath = filepath.Join(paths.SummaryDir, "daily_summary_2025-07-06.json")
			})

			It("should create the aggregate on the first trade of the day", func() {
				saved, err := sink.Save(rec, SaveAggregate)
				Expect(err).NotTo(HaveOccurred())
				Expect(saved).To(Equal([]string{paths.LogPath, summaryPath}))

				var summary DailySummary
				data, err := os.ReadFile(summaryPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(data, &summary)).To(Succeed())
				Expect(summary.Date).To(Equal("2025-07-06"))
				Expect(summary.TotalTrades).To(Equal(1))
				Expect(summary.TotalPnL).To(BeNumerically("~", 38.07, 1e-9))
			})

			It("should keep totals consistent across appends, treating null pnl as zero", func() {
				_, err := sink.Save(rec, SaveAggregate)
				Expect(err).NotTo(HaveOccurred())

				loss := &Record{TradeID: "ef56ab78", PnLAmount: ptr(-12.07), LoggedAt: now, OCRConfidence: "12.0%"}
				_, err = sink.Save(loss, SaveAggregate)
				Expect(err).NotTo(HaveOccurred())

				unparsed := &Record{TradeID: "cd90ef12", LoggedAt: now, OCRConfidence: "0.0%"}
				_, err = sink.Save(unparsed, SaveAggregate)
				Expect(err).NotTo(HaveOccurred())

				var summary DailySummary
				data, err := os.ReadFile(summaryPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(data, &summary)).To(Succeed())

				Expect(summary.TotalTrades).To(Equal(3))
				Expect(summary.Trades).To(HaveLen(3))
				Expect(summary.TotalPnL).To(BeNumerically("~", 26.0, 1e-9))
				Expect(summary.Trades[0].TradeID).To(Equal("ab12cd34"))
				Expect(summary.Trades[2].TradeID).To(Equal("cd90ef12"))
			})
		})

		When("using all mode", func() {
			It("should touch all three targets", func() {
				saved, err := sink.Save(rec, SaveAll)
				Expect(err).NotTo(HaveOccurred())
				Expect(saved).To(HaveLen(3))
			})
		})
	})
})

var _ = Describe("ParseSaveMode", func() {
	It("should accept the four effect-named modes", func() {
		for _, s := range []string{"log-only", "log+artifact", "log+aggregate", "all"} {
			mode, err := ParseSaveMode(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(mode)).To(Equal(s))
		}
	})

	It("should reject unknown modes", func() {
		_, err := ParseSaveMode("jsonl")
		Expect(err).To(HaveOccurred())
	})
})
