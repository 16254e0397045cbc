package lexer

import "testing"

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanTokensKeywordsAndCyrillicIdentifiers(t *testing.T) {
	src := "алг цел площадь(арг вещ сторона)\nнач\n  знач := сторона * сторона\nкон\n"
	toks := NewScanner(src).ScanTokens()
	want := []TokenType{
		TokenAlg, TokenTypeInt, TokenIdent, TokenLParen, TokenArg, TokenTypeFloat, TokenIdent, TokenRParen,
		TokenNach,
		TokenIdent, TokenAssign, TokenIdent, TokenStar, TokenIdent,
		TokenKon,
		TokenEOF,
	}
	got := tokenTypes(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if toks[2].Lexeme != "площадь" {
		t.Fatalf("function name lexeme = %q, want площадь", toks[2].Lexeme)
	}
	if toks[9].Lexeme != "знач" {
		t.Fatalf("знач should lex as a plain identifier, got %q", toks[9].Lexeme)
	}
}

func TestScanTokensNumbersAndComment(t *testing.T) {
	toks := NewScanner("цел а := 3 + 4.5e1 || комментарий\n").ScanTokens()
	want := []TokenType{TokenTypeInt, TokenIdent, TokenAssign, TokenInt, TokenPlus, TokenFloat, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), tokenTypes(toks))
	}
	for i := range want {
		if toks[i].Type != want[i] {
			t.Fatalf("token %d: got %s, want %s", i, toks[i].Type, want[i])
		}
	}
}

func TestScanTokensMultiCharOperators(t *testing.T) {
	toks := NewScanner("а <> б и в <= г").ScanTokens()
	want := []TokenType{TokenIdent, TokenNe, TokenIdent, TokenAnd, TokenIdent, TokenLe, TokenIdent, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), tokenTypes(toks))
	}
	for i := range want {
		if toks[i].Type != want[i] {
			t.Fatalf("token %d: got %s, want %s", i, toks[i].Type, want[i])
		}
	}
}
