package ocd

import (
	"testing"
	"testing/fstest"

	"github.com/cockroachdb/errors"
)

func TestDetectType(t *testing.T) {
	header := func(magic, typ uint32) []byte {
		b := make([]byte, 8)
		le.PutUint32(b, magic)
		le.PutUint32(b[4:], typ)
		return b
	}
	tests := []struct {
		name    string
		data    []byte
		want    ResourceType
		wantErr error
	}{
		{"image", header(FourCC, 1), TypeImage, nil},
		{"scene", header(FourCC, 2), TypeScene, nil},
		{"material", header(FourCC, 3), TypeMaterial, nil},
		{"short", []byte{'O', 'C'}, TypeUnknown, ErrCorrupt},
		{"bad magic", header(0x12345678, 1), TypeUnknown, ErrCorrupt},
		{"unknown type", header(FourCC, 99), TypeUnknown, ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectType(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("DetectType = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestFourCCSpellsOCD(t *testing.T) {
	b := make([]byte, 4)
	le.PutUint32(b, FourCC)
	if string(b) != "OCD " {
		t.Errorf("FourCC bytes = %q", b)
	}
}

func TestReadImage_Truncated(t *testing.T) {
	b, err := NewImageBuilder(FormatRGBA8, 2, 2, make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := b.Render()
	for _, n := range []int{12, imageHeaderSize + 10, len(data) - 1} {
		if _, err := ReadImage(data[:n]); !errors.Is(err, ErrCorrupt) {
			t.Errorf("ReadImage(%d bytes): err = %v, want ErrCorrupt", n, err)
		}
	}
}

func TestReadImage_WrongType(t *testing.T) {
	data, err := NewSceneBuilder().Render()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadImage(data); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestReadScene_Empty(t *testing.T) {
	data, err := NewSceneBuilder().Render()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != sceneHeaderSize {
		t.Errorf("empty scene is %d bytes, want %d", len(data), sceneHeaderSize)
	}
	s, err := ReadScene(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Objects) != 0 || len(s.Subresources) != 0 || len(s.Components) != 0 {
		t.Errorf("scene = %+v", s)
	}
}

func TestReadScene_CorruptLink(t *testing.T) {
	data, _ := buildSample(t)
	objOff := le.Uint64(data[24:])
	le.PutUint32(data[objOff+8:], 77)
	if _, err := ReadScene(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestReadScene_BadPayloadSize(t *testing.T) {
	data, _ := buildSample(t)
	le.PutUint64(data[32:], uint64(len(data))+8)
	if _, err := ReadScene(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoad(t *testing.T) {
	img, _ := NewImageBuilder(FormatRGBA8, 1, 1, []byte{1, 2, 3, 4})
	data, _ := img.Render()
	fsys := fstest.MapFS{
		"tex/a.ocd": {Data: data},
		"bad.ocd":   {Data: []byte("nope nope")},
	}

	got, typ, err := Load(fsys, "tex/a.ocd")
	if err != nil || typ != TypeImage || len(got) != len(data) {
		t.Errorf("Load = %d bytes, %v, %v", len(got), typ, err)
	}
	if _, _, err := Load(fsys, "bad.ocd"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("bad file: err = %v, want ErrCorrupt", err)
	}
	if _, _, err := Load(fsys, "missing.ocd"); err == nil {
		t.Error("missing file: no error")
	}
}
