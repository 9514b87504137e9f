package storage

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// manifest indexes the files of one cartridge directory.
type manifest struct {
	Title  string
	Key    string // hex encoded header
	States []stateEntry
}

type stateEntry struct {
	Index   int
	File    string
	Codec   Codec
	Size    int
	Created time.Time
}

func (e stateEntry) info() StateInfo {
	return StateInfo{Index: e.Index, Created: e.Created, Size: e.Size}
}

func (m *manifest) encode() []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("title")
	e.Str(m.Title)
	e.FieldStart("key")
	e.Str(m.Key)
	e.FieldStart("states")
	e.ArrStart()
	for _, s := range m.States {
		e.ObjStart()
		e.FieldStart("index")
		e.Int(s.Index)
		e.FieldStart("file")
		e.Str(s.File)
		e.FieldStart("codec")
		e.Str(string(s.Codec))
		e.FieldStart("size")
		e.Int(s.Size)
		e.FieldStart("created")
		e.Str(s.Created.UTC().Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func decodeManifest(data []byte) (*manifest, error) {
	m := &manifest{}
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "title":
			m.Title, err = d.Str()
		case "key":
			m.Key, err = d.Str()
		case "states":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := decodeStateEntry(d)
				if err != nil {
					return err
				}
				m.States = append(m.States, s)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	return m, nil
}

func decodeStateEntry(d *jx.Decoder) (stateEntry, error) {
	var s stateEntry
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "index":
			s.Index, err = d.Int()
		case "file":
			s.File, err = d.Str()
		case "codec":
			var c string
			if c, err = d.Str(); err == nil {
				s.Codec, err = ParseCodec(c)
			}
		case "size":
			s.Size, err = d.Int()
		case "created":
			var v string
			if v, err = d.Str(); err == nil {
				s.Created, err = time.Parse(time.RFC3339Nano, v)
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return s, err
}
