package tagextract

type extractorState int

const (
	stText extractorState = iota
	stOpenLT
	stOrphanClose
	stOpenName
	stAttrs
	stAttrKey
	stAttrEq
	stAttrValue
	stSelfClose
	stBody
	stBodyLT
	stCloseName
)

// Extractor splits a chunked byte stream into content runs and tags,
// tolerating a tag being split across any number of Write calls.
//
// It is not safe for concurrent use; a single upstream stream feeds it
// sequentially.
type Extractor struct {
	state extractorState

	ws      []byte // pending whitespace seen in stText, not yet committed
	content []byte // committed content bytes for the current run
	raw     []byte // every byte consumed since leaving stText, for verbatim replay on abort

	tagName   []byte
	attrs     attrValues
	attrKey   []byte
	attrVal   []byte
	bodyBuf   []byte
	closeName []byte

	openName string
}

// New creates an empty Extractor.
func New() *Extractor {
	return &Extractor{state: stText, attrs: attrValues{}}
}

// Write feeds the next chunk of the stream and returns any content runs
// and tags that became final as a result. Either slice may be empty.
func (e *Extractor) Write(chunk string) (content []string, tags []Tag) {
	for i := 0; i < len(chunk); i++ {
		c, t := e.step(chunk[i])
		if c != nil {
			content = append(content, *c)
		}
		if t != nil {
			tags = append(tags, *t)
		}
	}
	return content, tags
}

// Close signals end of stream. Any in-progress tag attempt or pending
// whitespace is resolved per the incomplete-at-EOF rule: unresolved tag
// syntax and orphan-close attempts are emitted as content verbatim;
// pending whitespace is dropped along with any in-flight content run
// flush.
func (e *Extractor) Close() (content []string, tags []Tag) {
	if e.state != stText {
		if s := string(e.raw); s != "" {
			content = append(content, s)
		}
		e.reset()
		return content, tags
	}
	if s := string(e.content); s != "" {
		content = append(content, s)
	}
	e.content = nil
	e.ws = nil
	return content, tags
}

func (e *Extractor) reset() {
	e.state = stText
	e.raw = nil
	e.tagName = nil
	e.attrs = attrValues{}
	e.attrKey = nil
	e.attrVal = nil
	e.bodyBuf = nil
	e.closeName = nil
	e.openName = ""
}

// step consumes one byte and returns a content run and/or a tag that
// became final as a direct result of this byte.
func (e *Extractor) step(b byte) (*string, *Tag) {
	switch e.state {
	case stText:
		return e.stepText(b)
	case stOpenLT:
		return e.stepOpenLT(b)
	case stOrphanClose:
		e.stepOrphanClose(b)
		return nil, nil
	case stOpenName:
		return e.stepOpenName(b)
	case stAttrs:
		return e.stepAttrs(b)
	case stAttrKey:
		return e.stepAttrKey(b), nil
	case stAttrEq:
		return e.stepAttrEq(b), nil
	case stAttrValue:
		e.stepAttrValue(b)
		return nil, nil
	case stSelfClose:
		return e.stepSelfClose(b)
	case stBody:
		e.stepBody(b)
		return nil, nil
	case stBodyLT:
		return e.stepBodyLT(b)
	case stCloseName:
		return e.stepCloseName(b)
	}
	return nil, nil
}

func (e *Extractor) stepText(b byte) (*string, *Tag) {
	if b == '<' {
		e.ws = nil
		var flushed *string
		if len(e.content) > 0 {
			s := string(e.content)
			flushed = &s
			e.content = nil
		}
		e.state = stOpenLT
		e.raw = append(e.raw, b)
		return flushed, nil
	}
	if isSpace(b) {
		e.ws = append(e.ws, b)
		return nil, nil
	}
	if len(e.ws) > 0 {
		if len(e.content) > 0 {
			// whitespace interior to an ongoing content run is preserved.
			e.content = append(e.content, e.ws...)
		}
		// whitespace bordering a tag (or the run's own start) is dropped.
		e.ws = nil
	}
	e.content = append(e.content, b)
	return nil, nil
}

func (e *Extractor) stepOpenLT(b byte) (*string, *Tag) {
	e.raw = append(e.raw, b)
	switch {
	case b == '/':
		e.state = stOrphanClose
	case isNameStart(b):
		e.tagName = append(e.tagName, b)
		e.state = stOpenName
	default:
		return e.abort(), nil
	}
	return nil, nil
}

func (e *Extractor) stepOrphanClose(b byte) {
	e.raw = append(e.raw, b)
	if b == '>' {
		e.reset()
	}
	// all other bytes, including non-name characters, are simply
	// consumed until the terminator; orphan closes are discarded
	// wholesale, not validated against the name grammar.
}

func (e *Extractor) stepOpenName(b byte) (*string, *Tag) {
	if isNameChar(b) {
		e.raw = append(e.raw, b)
		e.tagName = append(e.tagName, b)
		return nil, nil
	}
	e.raw = append(e.raw, b)
	switch {
	case isSpace(b):
		e.state = stAttrs
	case b == '/':
		e.state = stSelfClose
	case b == '>':
		e.openTagDone()
	default:
		return e.abort(), nil
	}
	return nil, nil
}

func (e *Extractor) openTagDone() {
	e.openName = string(e.tagName)
	e.state = stBody
}

func (e *Extractor) stepAttrs(b byte) (*string, *Tag) {
	e.raw = append(e.raw, b)
	switch {
	case isSpace(b):
		return nil, nil
	case b == '/':
		e.state = stSelfClose
	case b == '>':
		e.openTagDone()
	case isNameStart(b):
		e.attrKey = []byte{b}
		e.state = stAttrKey
	default:
		return e.abort(), nil
	}
	return nil, nil
}

func (e *Extractor) stepAttrKey(b byte) *string {
	e.raw = append(e.raw, b)
	if isNameChar(b) {
		e.attrKey = append(e.attrKey, b)
		return nil
	}
	if b == '=' {
		e.state = stAttrEq
		return nil
	}
	return e.abort()
}

func (e *Extractor) stepAttrEq(b byte) *string {
	e.raw = append(e.raw, b)
	if b == '"' {
		e.attrVal = nil
		e.state = stAttrValue
		return nil
	}
	return e.abort()
}

func (e *Extractor) stepAttrValue(b byte) {
	e.raw = append(e.raw, b)
	if b == '"' {
		e.attrs.add(string(e.attrKey), string(e.attrVal))
		e.attrKey = nil
		e.attrVal = nil
		e.state = stAttrs
		return
	}
	e.attrVal = append(e.attrVal, b)
}

func (e *Extractor) stepSelfClose(b byte) (*string, *Tag) {
	e.raw = append(e.raw, b)
	if b != '>' {
		return e.abort(), nil
	}
	tag := Tag{
		Name:       string(e.tagName),
		Attributes: e.attrs.build(),
		Content:    nil,
	}
	e.reset()
	return nil, &tag
}

func (e *Extractor) stepBody(b byte) {
	e.raw = append(e.raw, b)
	if b == '<' {
		e.state = stBodyLT
		return
	}
	e.bodyBuf = append(e.bodyBuf, b)
}

func (e *Extractor) stepBodyLT(b byte) (*string, *Tag) {
	e.raw = append(e.raw, b)
	if b == '/' {
		e.closeName = nil
		e.state = stCloseName
		return nil, nil
	}
	// the held '<' was not the start of a closing tag; it and this byte
	// are ordinary body content.
	e.bodyBuf = append(e.bodyBuf, '<', b)
	e.state = stBody
	return nil, nil
}

func (e *Extractor) stepCloseName(b byte) (*string, *Tag) {
	e.raw = append(e.raw, b)
	if isNameChar(b) {
		e.closeName = append(e.closeName, b)
		return nil, nil
	}
	if b != '>' {
		return e.abort(), nil
	}
	if string(e.closeName) != e.openName {
		return e.abort(), nil
	}
	body := string(e.bodyBuf)
	tag := Tag{
		Name:       e.openName,
		Attributes: e.attrs.build(),
		Content:    &body,
	}
	e.reset()
	return nil, &tag
}

// abort flushes the raw accumulator as a verbatim content run and
// resets to stText.
func (e *Extractor) abort() *string {
	s := string(e.raw)
	e.reset()
	if s == "" {
		return nil
	}
	return &s
}
