package tabular_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sclaridg/bio-610B/internal/adapters/tabular"
	"github.com/sclaridg/bio-610B/internal/domain/dataset"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRead(t *testing.T) {
	Convey("Given delimited text with a header", t, func() {
		Convey("Named columns and rows parse into a dataset", func() {
			in := "y,x\n1.5,2\n2.5,4\n"
			ds, err := tabular.Read(strings.NewReader(in))
			So(err, ShouldBeNil)
			So(ds.Columns, ShouldResemble, []string{"y", "x"})
			So(ds.TimeSeries, ShouldBeFalse)
			So(ds.Len(), ShouldEqual, 2)
			So(ds.Obs[0].Values, ShouldResemble, []float64{1.5, 2})
			So(ds.Obs[1].Index, ShouldEqual, 1)
		})

		Convey("An index column makes it a time series", func() {
			in := "time,y\n0,1\n2,3\n5,4\n"
			ds, err := tabular.Read(strings.NewReader(in), tabular.WithIndexColumn("time"))
			So(err, ShouldBeNil)
			So(ds.TimeSeries, ShouldBeTrue)
			So(ds.Columns, ShouldResemble, []string{"y"})
			So(ds.Obs[2].Index, ShouldEqual, 5)
		})

		Convey("NA tokens and empty fields become masked cells", func() {
			in := "y,x\n1,NA\n,2\n3,4\n"
			ds, err := tabular.Read(strings.NewReader(in))
			So(err, ShouldBeNil)
			So(ds.MissingCount(), ShouldEqual, 2)
			So(ds.Obs[0].IsObserved(0), ShouldBeTrue)
			So(ds.Obs[0].IsObserved(1), ShouldBeFalse)
			So(ds.Obs[1].IsObserved(0), ShouldBeFalse)
			So(ds.Obs[2].Observed, ShouldBeNil)
		})

		Convey("Unordered time indices are rejected", func() {
			in := "time,y\n2,1\n1,2\n"
			_, err := tabular.Read(strings.NewReader(in), tabular.WithIndexColumn("time"))
			So(errors.Is(err, dataset.ErrUnorderedIndex), ShouldBeTrue)
		})

		Convey("A missing index column is rejected", func() {
			in := "y\n1\n"
			_, err := tabular.Read(strings.NewReader(in), tabular.WithIndexColumn("time"))
			So(errors.Is(err, tabular.ErrUnknownColumn), ShouldBeTrue)
		})

		Convey("Unparseable fields are rejected", func() {
			in := "y\nnot-a-number\n"
			_, err := tabular.Read(strings.NewReader(in))
			So(errors.Is(err, tabular.ErrBadRecord), ShouldBeTrue)
		})

		Convey("Empty input has no header", func() {
			_, err := tabular.Read(strings.NewReader(""))
			So(errors.Is(err, tabular.ErrNoHeader), ShouldBeTrue)
		})
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	Convey("Given a time series with a masked cell", t, func() {
		ds := dataset.New([]string{"y"}, true)
		So(ds.Append(dataset.Observation{Index: 0, Values: []float64{1.25}}), ShouldBeNil)
		So(ds.Append(dataset.Observation{Index: 1, Values: []float64{0}, Observed: []bool{false}}), ShouldBeNil)
		So(ds.Append(dataset.Observation{Index: 2, Values: []float64{-3.5}}), ShouldBeNil)

		var buf bytes.Buffer
		So(tabular.Write(&buf, ds), ShouldBeNil)

		Convey("Reading back preserves values, indices, and missingness", func() {
			back, err := tabular.Read(&buf, tabular.WithIndexColumn("index"))
			So(err, ShouldBeNil)
			So(back.TimeSeries, ShouldBeTrue)
			So(back.Len(), ShouldEqual, 3)
			So(back.Obs[0].Values[0], ShouldEqual, 1.25)
			So(back.Obs[1].IsObserved(0), ShouldBeFalse)
			So(back.Obs[2].Values[0], ShouldEqual, -3.5)
			So(back.Obs[2].Index, ShouldEqual, 2)
		})
	})

	Convey("Given a custom delimiter, the round trip still holds", t, func() {
		ds := dataset.New([]string{"a", "b"}, false)
		So(ds.Append(dataset.Observation{Index: 0, Values: []float64{1, 2}}), ShouldBeNil)

		var buf bytes.Buffer
		So(tabular.Write(&buf, ds, tabular.WithComma('\t')), ShouldBeNil)
		back, err := tabular.Read(&buf, tabular.WithComma('\t'))
		So(err, ShouldBeNil)
		So(back.Obs[0].Values, ShouldResemble, []float64{1, 2})
	})
}
