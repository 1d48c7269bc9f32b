package gameclient

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Схемы сжатия, которые умеет договаривать setCompression.
// none — текстовые кадры с голым JSON; gzip — бинарные кадры вида
// varint(длина исходного JSON) + gzip-поток.
const (
	SchemeNone = "none"
	SchemeGzip = "gzip"
)

// supportedSchemes — то, что клиент готов предложить серверу.
var supportedSchemes = map[string]bool{
	SchemeNone: true,
	SchemeGzip: true,
}

// packGzipFrame упаковывает plain в бинарный кадр: префикс длины + gzip.
func packGzipFrame(plain []byte) ([]byte, error) {
	buf := bytes.NewBuffer(appendUvarint(make([]byte, 0, maxVarintLen32), uint32(len(plain))))
	zw := gzip.NewWriter(buf)
	if _, err := zw.Write(plain); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unpackGzipFrame разбирает бинарный кадр обратно в JSON.
// Любое расхождение с префиксом длины (обрыв, мусор, лишние данные)
// превращается в ErrMalformedFrame.
func unpackGzipFrame(frame []byte) ([]byte, error) {
	want, n, err := readUvarint(frame)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(frame[n:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	defer zr.Close()

	// читаем не больше заявленного +1, чтобы поймать слишком длинный поток
	plain, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(plain) != int(want) {
		return nil, fmt.Errorf("%w: length prefix %d, payload %d", ErrMalformedFrame, want, len(plain))
	}
	return plain, nil
}
