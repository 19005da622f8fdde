package export

import (
	"fmt"

	"backend-mtbtrainer/internal/sensor"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// sampleRow is the flat Parquet layout: one row per sample, columns a kind
// does not carry are null.
type sampleRow struct {
	Type                string   `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Timestamp           int64    `parquet:"name=timestamp, type=INT64"`
	X                   *float32 `parquet:"name=x, type=FLOAT, repetitiontype=OPTIONAL"`
	Y                   *float32 `parquet:"name=y, type=FLOAT, repetitiontype=OPTIONAL"`
	Z                   *float32 `parquet:"name=z, type=FLOAT, repetitiontype=OPTIONAL"`
	W                   *float32 `parquet:"name=w, type=FLOAT, repetitiontype=OPTIONAL"`
	HeadingAccuracy     *int32   `parquet:"name=heading_accuracy, type=INT32, repetitiontype=OPTIONAL"`
	PressureHPa         *float32 `parquet:"name=pressure_hpa, type=FLOAT, repetitiontype=OPTIONAL"`
	Altitude            *float64 `parquet:"name=altitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	SpeedMps            *float32 `parquet:"name=speed_mps, type=FLOAT, repetitiontype=OPTIONAL"`
	SpeedAccuracyMps    *float32 `parquet:"name=speed_accuracy_mps, type=FLOAT, repetitiontype=OPTIONAL"`
	Latitude            *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude           *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	HorizontalAccuracyM *float32 `parquet:"name=horizontal_accuracy_m, type=FLOAT, repetitiontype=OPTIONAL"`
}

func ptr[T any](v T) *T { return &v }

func xyz(row *sampleRow, x, y, z float32) {
	row.X, row.Y, row.Z = ptr(x), ptr(y), ptr(z)
}

func toRow(s sensor.Sample) sampleRow {
	row := sampleRow{Type: string(s.Kind()), Timestamp: s.Nanos()}
	switch v := s.(type) {
	case sensor.Accelerometer:
		xyz(&row, v.X, v.Y, v.Z)
	case sensor.Gyroscope:
		xyz(&row, v.X, v.Y, v.Z)
	case sensor.LinearAccel:
		xyz(&row, v.X, v.Y, v.Z)
	case sensor.Barometer:
		xyz(&row, v.X, v.Y, v.Z)
	case sensor.Gravity:
		xyz(&row, v.X, v.Y, v.Z)
	case sensor.RotationVector:
		xyz(&row, v.X, v.Y, v.Z)
		row.W = v.W
		if v.HeadingAccuracy != nil {
			row.HeadingAccuracy = ptr(int32(*v.HeadingAccuracy))
		}
	case sensor.Pressure:
		row.PressureHPa = ptr(v.PressureHPa)
		if v.AltitudeMeters != nil {
			row.Altitude = ptr(float64(*v.AltitudeMeters))
		}
	case sensor.GPSSpeed:
		row.SpeedMps = ptr(v.SpeedMps)
		row.SpeedAccuracyMps = v.SpeedAccuracyMps
	case sensor.GPSLocation:
		row.Latitude = ptr(v.Latitude)
		row.Longitude = ptr(v.Longitude)
		row.Altitude = v.Altitude
		row.HorizontalAccuracyM = v.HorizontalAccuracyM
	}
	return row
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func fromRow(row sampleRow) (sensor.Sample, error) {
	kind, err := sensor.ParseKind(row.Type)
	if err != nil {
		return nil, err
	}
	ts := row.Timestamp
	x, y, z := deref(row.X), deref(row.Y), deref(row.Z)
	switch kind {
	case sensor.KindAccelerometer:
		return sensor.Accelerometer{Timestamp: ts, X: x, Y: y, Z: z}, nil
	case sensor.KindGyroscope:
		return sensor.Gyroscope{Timestamp: ts, X: x, Y: y, Z: z}, nil
	case sensor.KindLinearAccel:
		return sensor.LinearAccel{Timestamp: ts, X: x, Y: y, Z: z}, nil
	case sensor.KindBarometer:
		return sensor.Barometer{Timestamp: ts, X: x, Y: y, Z: z}, nil
	case sensor.KindGravity:
		return sensor.Gravity{Timestamp: ts, X: x, Y: y, Z: z}, nil
	case sensor.KindRotationVector:
		s := sensor.RotationVector{Timestamp: ts, X: x, Y: y, Z: z, W: row.W}
		if row.HeadingAccuracy != nil {
			s.HeadingAccuracy = ptr(int(*row.HeadingAccuracy))
		}
		return s, nil
	case sensor.KindPressure:
		s := sensor.Pressure{Timestamp: ts, PressureHPa: deref(row.PressureHPa)}
		if row.Altitude != nil {
			s.AltitudeMeters = ptr(float32(*row.Altitude))
		}
		return s, nil
	case sensor.KindGPSSpeed:
		return sensor.GPSSpeed{Timestamp: ts, SpeedMps: deref(row.SpeedMps), SpeedAccuracyMps: row.SpeedAccuracyMps}, nil
	default:
		return sensor.GPSLocation{
			Timestamp:           ts,
			Latitude:            deref(row.Latitude),
			Longitude:           deref(row.Longitude),
			Altitude:            row.Altitude,
			HorizontalAccuracyM: row.HorizontalAccuracyM,
		}, nil
	}
}

// MarshalParquet encodes samples as a snappy-compressed Parquet file.
func MarshalParquet(samples []sensor.Sample) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(sampleRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, s := range samples {
		if err := pw.Write(toRow(s)); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

func UnmarshalParquet(data []byte) ([]sensor.Sample, error) {
	fr := parquetbuffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(fr, new(sampleRow), 4)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]sampleRow, n)
	if n > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, err
		}
	}

	out := make([]sensor.Sample, 0, n)
	for i, row := range rows {
		s, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
