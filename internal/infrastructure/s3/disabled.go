package s3

import (
	"context"
	"errors"
)

// ErrStorageDisabled はストレージ未設定のままファイル操作を求められたときに返す。
var ErrStorageDisabled = errors.New("media storage is not configured")

// Disabled はバケット未設定時の代替。削除だけは何もせず成功させる。
type Disabled struct{}

func (Disabled) Upload(context.Context, []byte, string, string) (string, error) {
	return "", ErrStorageDisabled
}

func (Disabled) Remove(context.Context, string) error { return nil }

func (Disabled) Copy(context.Context, string, string, string, string) (bool, error) {
	return false, ErrStorageDisabled
}

func (Disabled) PresignUpload(context.Context, string, string) (string, error) {
	return "", ErrStorageDisabled
}
