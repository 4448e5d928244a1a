// tagbox
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of tagbox.
//
// tagbox is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// tagbox is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tagbox; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/ZaparooProject/tagbox/credential"
	"github.com/ZaparooProject/tagbox/mapper"
	"github.com/ZaparooProject/tagbox/pn532/transport/uart"
	"github.com/spf13/cobra"
)

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <uid>",
		Short: "Look up the file mapped to a card",
		Long: `Resolves a card UID against the mapping database exactly as the player
would and prints the filename, or the result code on failure.

Example:
  tagbox resolve 04A2B3C4D5E680`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := card.ParseIdentifier(args[0])
			if err != nil {
				return err
			}
			name, err := a.newMapper().Resolve(id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
			return err
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the mapping database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.newMapper().Check(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", a.cfg.MappingPath())
			return err
		},
	}
}

func newMapCmd(a *app) *cobra.Command {
	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Edit the mapping database",
	}

	mapCmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List valid mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return a.newMapper().Walk(func(e mapper.Entry) error {
				_, err := fmt.Fprintln(out, e)
				return err
			})
		},
	}, &cobra.Command{
		Use:   "set <id> <filename>",
		Short: "Map a card to a file, replacing any existing mapping",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			_, err := a.newStore().Put(args[0], args[1])
			return err
		},
	}, &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove the mappings of a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.newStore().Delete(args[0])
		},
	})
	return mapCmd
}

func (a *app) newStore() *mapper.Store {
	return mapper.NewStore(a.cfg.MappingPath(), a.logger.Named("store"))
}

func newDecodeCmd(_ *app) *cobra.Command {
	var showPassphrase bool
	cmd := &cobra.Command{
		Use:   "decode <hexfile>",
		Short: "Decode a credential card memory dump",
		Long: `Decodes a hex dump of the credential range of a card, as read from its
first data block, and prints the network it describes. Use - for stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readHexDump(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			creds, err := credential.Decode(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showPassphrase {
				_, err = fmt.Fprintf(out, "ssid=%q passphrase=%q\n", creds.SSID, creds.Passphrase)
				return err
			}
			_, err = fmt.Fprintln(out, creds)
			return err
		},
	}
	cmd.Flags().BoolVar(&showPassphrase, "show-passphrase", false, "Print the passphrase")
	return cmd
}

func newEncodeCmd(_ *app) *cobra.Command {
	var ssid, passphrase, format string
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Produce the memory image of a credential card",
		Long: `Prints the hex image to write from the first data block of the
credential range of a MIFARE Classic card.

Example:
  tagbox encode --ssid workshop --passphrase secret123 --format wsc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := credential.ParseFormat(format)
			if err != nil {
				return err
			}
			img, err := credential.Encode(card.Credentials{SSID: ssid, Passphrase: passphrase}, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), hex.Dump(img))
			return err
		},
	}
	cmd.Flags().StringVar(&ssid, "ssid", "", "Network name (required)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Network passphrase")
	cmd.Flags().StringVar(&format, "format", "text", "Record type: text or wsc")
	_ = cmd.MarkFlagRequired("ssid")
	return cmd
}

func newPortsCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports a UART reader could be on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := uart.ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// readHexDump reads name ("-" for stdin) and decodes its hex digits. Either
// plain hex or the output of hexdump -C is accepted: offsets and the
// character column are dropped, whitespace and colons ignored.
func readHexDump(stdin io.Reader, name string) ([]byte, error) {
	var raw []byte
	var err error
	if name == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, err
	}

	var digits strings.Builder
	dump := false
	for _, line := range strings.Split(string(raw), "\n") {
		if i := strings.IndexByte(line, '|'); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || r == ':'
		})
		switch {
		case len(fields) > 1 && len(fields[0]) == 8 && len(fields[1]) == 2:
			dump = true
			fields = fields[1:]
		case dump && len(fields) == 1 && len(fields[0]) == 8:
			continue // final offset line of hexdump -C
		}
		for _, f := range fields {
			digits.WriteString(f)
		}
	}
	if digits.Len() == 0 {
		return nil, errors.New("no hex data")
	}
	data, err := hex.DecodeString(digits.String())
	if err != nil {
		return nil, fmt.Errorf("decode hex dump: %w", err)
	}
	return data, nil
}
