package parser

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

const languagePHP = "php"

// Extensions lists the file extensions parsed as PHP.
var Extensions = []string{".php", ".phtml", ".inc"}

var (
	phpOnce     sync.Once
	phpLanguage *sitter.Language
)

// PHPLanguage returns the PHP grammar, including the leading text/`<?php`
// handling of the full-file dialect.
func PHPLanguage() *sitter.Language {
	phpOnce.Do(func() {
		phpLanguage = sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	})
	return phpLanguage
}
