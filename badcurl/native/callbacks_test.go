package native

import (
	"errors"
	"io"
	"testing"
	"unsafe"

	. "github.com/onsi/gomega"
)

type sink struct {
	chunks [][]byte
	short  bool
}

func sinkWrite(buf *byte, size uintptr, token Token) uintptr {
	s := (*sink)(token)
	s.chunks = append(s.chunks, append([]byte(nil), unsafe.Slice(buf, size)...))
	if s.short {
		return size - 1
	}
	return size
}

func TestWriteChunksAtMaxWriteSize(t *testing.T) {
	g := NewGomegaWithT(t)
	s := &sink{}
	var cb Callbacks
	g.Expect(cb.SetFunc(OptWriteFunction, DataFunc(sinkWrite))).To(Equal(OK))
	g.Expect(cb.SetToken(OptWriteData, Token(unsafe.Pointer(s)))).To(Equal(OK))

	data := make([]byte, 2*MaxWriteSize+10)
	g.Expect(cb.Write(data)).To(Equal(OK))
	g.Expect(s.chunks).To(HaveLen(3))
	g.Expect(s.chunks[0]).To(HaveLen(MaxWriteSize))
	g.Expect(s.chunks[2]).To(HaveLen(10))

	s.chunks, s.short = nil, true
	g.Expect(cb.Write(data)).To(Equal(WriteError))
	g.Expect(s.chunks).To(HaveLen(1))
}

func TestWriteWithoutCallbackDiscards(t *testing.T) {
	g := NewGomegaWithT(t)
	var cb Callbacks
	g.Expect(cb.Write([]byte("ignored"))).To(Equal(OK))
	g.Expect(cb.Header([]byte("X: y\r\n"))).To(Equal(OK))
}

func TestSetFuncAcceptsUnnamedSignatures(t *testing.T) {
	g := NewGomegaWithT(t)
	var cb Callbacks

	g.Expect(cb.SetFunc(OptReadFunction, func(*byte, uintptr, Token) uintptr { return 0 })).To(Equal(OK))
	g.Expect(cb.HasRead()).To(BeTrue())
	g.Expect(cb.SetFunc(OptReadFunction, nil)).To(Equal(OK))
	g.Expect(cb.HasRead()).To(BeFalse())

	g.Expect(cb.SetFunc(OptXferInfoFunction, func(Token, int64, int64, int64, int64) int { return 0 })).To(Equal(OK))
	g.Expect(cb.HasXferInfo()).To(BeTrue())
	g.Expect(cb.SetFunc(OptDebugFunction, func(InfoType, *byte, uintptr, Token) int { return 0 })).To(Equal(OK))
	g.Expect(cb.HasDebug()).To(BeTrue())

	g.Expect(cb.SetFunc(OptWriteFunction, func([]byte) int { return 0 })).To(Equal(BadFunctionArgument))
	g.Expect(cb.SetFunc(OptURL, nil)).To(Equal(UnknownOption))
	g.Expect(cb.SetToken(OptURL, nil)).To(Equal(UnknownOption))
}

func TestXferInfoAndDebugAbort(t *testing.T) {
	g := NewGomegaWithT(t)
	var cb Callbacks
	g.Expect(cb.XferInfo(1, 0, 0, 0)).To(Equal(OK))

	g.Expect(cb.SetFunc(OptXferInfoFunction, XferInfoFunc(func(_ Token, _, dlnow, _, _ int64) int {
		if dlnow > 0 {
			return 1
		}
		return 0
	}))).To(Equal(OK))
	g.Expect(cb.XferInfo(10, 0, 0, 0)).To(Equal(OK))
	g.Expect(cb.XferInfo(10, 5, 0, 0)).To(Equal(AbortedByCallback))

	var seen []InfoType
	g.Expect(cb.SetFunc(OptDebugFunction, DebugFunc(func(kind InfoType, _ *byte, _ uintptr, _ Token) int {
		seen = append(seen, kind)
		return int(kind)
	}))).To(Equal(OK))
	g.Expect(cb.Debug(InfoText, []byte("hi"))).To(Equal(OK))
	g.Expect(cb.Debug(InfoHeaderOut, nil)).To(Equal(OK))
	g.Expect(cb.Debug(InfoHeaderIn, []byte("x"))).To(Equal(AbortedByCallback))
	g.Expect(seen).To(Equal([]InfoType{InfoText, InfoHeaderIn}))
}

func TestCallbackReader(t *testing.T) {
	g := NewGomegaWithT(t)
	src := []byte("request body")
	var cb Callbacks
	g.Expect(cb.SetFunc(OptReadFunction, DataFunc(func(buf *byte, size uintptr, _ Token) uintptr {
		n := copy(unsafe.Slice(buf, size), src)
		src = src[n:]
		return uintptr(n)
	}))).To(Equal(OK))

	r := cb.Reader()
	body, err := io.ReadAll(r)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(body)).To(Equal("request body"))
	g.Expect(r.BytesRead()).To(Equal(int64(12)))
	g.Expect(r.Code()).To(Equal(OK))

	g.Expect(cb.SetFunc(OptReadFunction, DataFunc(func(*byte, uintptr, Token) uintptr { return ReadfuncAbort }))).To(Equal(OK))
	r = cb.Reader()
	_, err = io.ReadAll(r)
	g.Expect(errors.Is(err, ErrReadAborted)).To(BeTrue())
	g.Expect(r.Code()).To(Equal(AbortedByCallback))

	g.Expect(cb.SetFunc(OptReadFunction, DataFunc(func(_ *byte, size uintptr, _ Token) uintptr { return size + 1 }))).To(Equal(OK))
	r = cb.Reader()
	_, err = r.Read(make([]byte, 4))
	g.Expect(err).To(MatchError(ErrReadOverflow))
	g.Expect(r.Code()).To(Equal(ReadError))

	var none Callbacks
	n, err := none.Reader().Read(make([]byte, 4))
	g.Expect(n).To(BeZero())
	g.Expect(err).To(Equal(io.EOF))
}

func TestOptionKinds(t *testing.T) {
	g := NewGomegaWithT(t)
	g.Expect(OptVerbose.Kind()).To(Equal(KindLong))
	g.Expect(OptURL.Kind()).To(Equal(KindString))
	g.Expect(OptHTTPHeader.Kind()).To(Equal(KindSlist))
	g.Expect(OptALPN.Kind()).To(Equal(KindSlist))
	g.Expect(OptWriteFunction.Kind()).To(Equal(KindFunc))
	g.Expect(OptWriteData.Kind()).To(Equal(KindToken))
	g.Expect(OptInFileSize.Kind()).To(Equal(KindOffT))

	g.Expect(OptSSLClientHello.String()).To(Equal("SSL_CLIENT_HELLO"))
	g.Expect(Option(12345).Known()).To(BeFalse())
	g.Expect(Option(12345).String()).To(Equal("OPTION(12345)"))
}

func TestStrerror(t *testing.T) {
	g := NewGomegaWithT(t)
	g.Expect(Strerror(OK)).To(Equal("No error"))
	g.Expect(Strerror(WriteError)).To(ContainSubstring("writing received data"))
	g.Expect(Strerror(Code(9999))).To(Equal("Unknown error"))
	g.Expect(WriteError.String()).To(HavePrefix("23 ("))
}
