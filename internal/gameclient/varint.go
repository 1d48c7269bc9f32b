package gameclient

// Кодек varint для префикса длины в сжатых кадрах: по 7 бит на группу,
// старший бит — признак продолжения, младшие группы идут первыми.
// Значения 32-битные, максимум 5 групп.

// maxVarintLen32 — максимальная длина varint-представления uint32.
const maxVarintLen32 = 5

// appendUvarint дописывает varint-представление v в конец dst.
func appendUvarint(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// readUvarint читает varint из начала b и возвращает значение и число
// прочитанных байт. ErrMalformedVarint — если число не умещается в uint32
// (группа с признаком продолжения после пятой, либо лишние биты в пятой)
// или вход оборвался до завершающей группы.
func readUvarint(b []byte) (uint32, int, error) {
	var v uint32
	var shift uint
	for i, c := range b {
		if i >= maxVarintLen32 {
			return 0, 0, ErrMalformedVarint
		}
		if i == maxVarintLen32-1 && c&0x7f > 0x0f {
			// в пятой группе значимы только 4 бита
			return 0, 0, ErrMalformedVarint
		}
		v |= uint32(c&0x7f) << shift
		if c < 0x80 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrMalformedVarint
}

// uvarintLen возвращает длину varint-представления v в байтах.
func uvarintLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
