package dataset_test

import (
	"errors"
	"testing"

	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDataset_Append(t *testing.T) {
	Convey("Given a two-column dataset", t, func() {
		ds := dataset.New([]string{"a", "b"}, false)

		Convey("Matching widths append cleanly", func() {
			err := ds.Append(dataset.Observation{Index: 0, Values: []float64{1, 2}})
			So(err, ShouldBeNil)
			So(ds.Len(), ShouldEqual, 1)
			So(ds.Width(), ShouldEqual, 2)
		})

		Convey("A mismatched value width is rejected", func() {
			err := ds.Append(dataset.Observation{Index: 0, Values: []float64{1}})
			So(errors.Is(err, dataset.ErrShapeMismatch), ShouldBeTrue)
		})

		Convey("A mismatched mask width is rejected", func() {
			err := ds.Append(dataset.Observation{
				Index:    0,
				Values:   []float64{1, 2},
				Observed: []bool{true},
			})
			So(errors.Is(err, dataset.ErrShapeMismatch), ShouldBeTrue)
		})
	})
}

func TestDataset_Column(t *testing.T) {
	Convey("Given observations with a missing cell", t, func() {
		ds := dataset.New([]string{"y"}, true)
		So(ds.Append(dataset.Observation{Index: 0, Values: []float64{1}}), ShouldBeNil)
		So(ds.Append(dataset.Observation{Index: 1, Values: []float64{0}, Observed: []bool{false}}), ShouldBeNil)
		So(ds.Append(dataset.Observation{Index: 2, Values: []float64{3}}), ShouldBeNil)

		Convey("Column extraction carries the observed mask", func() {
			values, observed, err := ds.Column("y")
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []float64{1, 0, 3})
			So(observed, ShouldResemble, []bool{true, false, true})
		})

		Convey("Unknown columns are rejected", func() {
			_, _, err := ds.Column("z")
			So(errors.Is(err, dataset.ErrUnknownColumn), ShouldBeTrue)
		})

		Convey("MissingCount counts masked cells", func() {
			So(ds.MissingCount(), ShouldEqual, 1)
		})
	})
}

func TestDataset_Validate(t *testing.T) {
	Convey("Given a time series dataset", t, func() {
		ds := dataset.New([]string{"y"}, true)
		So(ds.Append(dataset.Observation{Index: 0, Values: []float64{1}}), ShouldBeNil)
		So(ds.Append(dataset.Observation{Index: 1, Values: []float64{2}}), ShouldBeNil)

		Convey("Strictly increasing indices validate", func() {
			So(ds.Validate(), ShouldBeNil)
		})

		Convey("A repeated index fails validation", func() {
			So(ds.Append(dataset.Observation{Index: 1, Values: []float64{3}}), ShouldBeNil)
			So(errors.Is(ds.Validate(), dataset.ErrUnorderedIndex), ShouldBeTrue)
		})
	})

	Convey("Given an exchangeable dataset, ordering is irrelevant", t, func() {
		ds := dataset.New([]string{"y"}, false)
		So(ds.Append(dataset.Observation{Index: 5, Values: []float64{1}}), ShouldBeNil)
		So(ds.Append(dataset.Observation{Index: 2, Values: []float64{2}}), ShouldBeNil)
		So(ds.Validate(), ShouldBeNil)
	})

	Convey("Given a dataset without columns, validation fails", t, func() {
		ds := dataset.New(nil, false)
		So(errors.Is(ds.Validate(), dataset.ErrShapeMismatch), ShouldBeTrue)
	})
}
