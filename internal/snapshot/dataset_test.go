package snapshot

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/sim"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func testSnapshot(step int, fill float64) sim.Snapshot {
	g := grid.Grid{Nx: 4, Ny: 3, Dx: 0.5}
	s := sim.Snapshot{
		Step:  step,
		Time:  float64(step) * 0.01,
		Grid:  g,
		Phase: make([]float64, g.Size()),
		Temp:  make([]float64, g.Size()),
	}
	for i := range s.Phase {
		s.Phase[i] = fill + float64(i)/100
		s.Temp[i] = -fill * float64(i)
	}
	return s
}

var _ = Describe("Dataset", func() {
	var (
		ds   *Dataset
		path string
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), DatasetFile)
		var err error
		ds, err = OpenDataset(path, quietLog)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(ds.Close()).To(Succeed())
	})

	It("should start empty", func() {
		steps, err := ds.Steps()
		Expect(err).NotTo(HaveOccurred())
		Expect(steps).To(BeEmpty())
	})

	It("should round-trip both fields bit for bit", func() {
		in := testSnapshot(20, 0.3)
		Expect(ds.WriteSnapshot(in)).To(Succeed())

		out, err := ds.Read(20)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Step).To(Equal(20))
		Expect(out.Time).To(Equal(in.Time))
		Expect(out.Grid).To(Equal(in.Grid))
		Expect(out.Phase).To(Equal(in.Phase))
		Expect(out.Temp).To(Equal(in.Temp))
	})

	It("should list steps in order", func() {
		for _, step := range []int{10, 0, 5} {
			Expect(ds.WriteSnapshot(testSnapshot(step, 0))).To(Succeed())
		}
		steps, err := ds.Steps()
		Expect(err).NotTo(HaveOccurred())
		Expect(steps).To(Equal([]int{0, 5, 10}))
	})

	It("should replace a rewritten step", func() {
		Expect(ds.WriteSnapshot(testSnapshot(3, 0.1))).To(Succeed())
		Expect(ds.WriteSnapshot(testSnapshot(3, 0.9))).To(Succeed())

		out, err := ds.Read(3)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Phase[0]).To(Equal(0.9))
		steps, err := ds.Steps()
		Expect(err).NotTo(HaveOccurred())
		Expect(steps).To(HaveLen(1))
	})

	It("should report a missing step", func() {
		_, err := ds.Read(7)
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	It("should reject a mis-shaped snapshot", func() {
		s := testSnapshot(1, 0)
		s.Temp = s.Temp[:5]
		Expect(errors.Is(ds.WriteSnapshot(s), grid.ErrShapeMismatch)).To(BeTrue())
	})

	It("should reopen an existing file without re-migrating", func() {
		Expect(ds.WriteSnapshot(testSnapshot(0, 0.5))).To(Succeed())
		Expect(ds.Close()).To(Succeed())

		var err error
		ds, err = OpenDataset(path, quietLog)
		Expect(err).NotTo(HaveOccurred())
		steps, err := ds.Steps()
		Expect(err).NotTo(HaveOccurred())
		Expect(steps).To(Equal([]int{0}))
	})
})
