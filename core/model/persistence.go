package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// SaveModel はモデルをファイルに保存する
//
// 保存できるのはエクスポートされたフィールドのみ。学習済みアンサンブルは
// Snapshot() で gob 可能な形に変換してから保存する。
//
// 使用例:
//
//	snap := clf.Snapshot()
//	err := model.SaveModel(snap, "gb.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	return SaveModelToWriter(model, file)
}

// LoadModel はファイルからモデルを読み込む
//
// 使用例:
//
//	var snap ensemble.GradientBoostingSnapshot
//	err := model.LoadModel(&snap, "gb.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
