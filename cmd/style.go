package main

import (
	"sort"

	"github.com/luca-patrignani/intuition/domain/quiz"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

type standing struct {
	peer quiz.PeerID
	wins uint
}

// standings orders the leaderboard by wins, then by id.
func standings(st quiz.RoundState) []standing {
	list := make([]standing, 0, len(st.Roster))
	seen := map[quiz.PeerID]bool{}
	for peer, wins := range st.Leaderboard {
		list = append(list, standing{peer: peer, wins: wins})
		seen[peer] = true
	}
	for peer := range st.Roster {
		if !seen[peer] {
			list = append(list, standing{peer: peer})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].wins != list[j].wins {
			return list[i].wins > list[j].wins
		}
		return list[i].peer < list[j].peer
	})
	return list
}

func printBanner() {
	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("I", pterm.FgCyan.ToStyle()),
		putils.LettersFromStringWithStyle("ntuition", pterm.FgDarkGray.ToStyle()),
	).Render()
}

func getRoundPanel(st quiz.RoundState, self quiz.PeerID) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	active := pterm.LightCyan(string(st.ActivePeer))
	if st.ActivePeer == self {
		active += pterm.LightGreen(" (you)")
	}
	question := pterm.FgGray.Sprint("waiting for a question")
	if st.Phase == quiz.AwaitingAnswers && st.Question != "" {
		question = pterm.LightYellow(st.Question)
	}
	info := pterm.Sprintfln("Round: %d\nAsking: %s\n%s", st.Round, active, question)
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightYellow("|ROUND|")).WithTitleTopCenter().Sprint(info)}
}

func getLeaderboardPanel(st quiz.RoundState, self quiz.PeerID) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	info := ""
	for i, s := range standings(st) {
		name := string(s.peer)
		if s.peer == self {
			name = pterm.LightGreen(name)
		}
		info += pterm.Sprintfln("%d. %s  %d", i+1, name, s.wins)
	}
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightCyan("|LEADERBOARD|")).WithTitleTopCenter().Sprint(info)}
}

// getResultPanel describes the last concluded round, if the state carries one.
func getResultPanel(st quiz.RoundState) (pterm.Panel, bool) {
	if st.Result == nil {
		return pterm.Panel{}, false
	}
	r := st.Result
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	info := pterm.Sprintfln("%s asked: %s\nCorrect answer: %d", pterm.LightCyan(string(r.Asker)), r.Question, r.CorrectAnswer)
	if r.Winner == "" {
		info += pterm.Sprintfln("%s", pterm.LightRed("Nobody answered"))
	} else {
		info += pterm.Sprintfln("%s won the round", pterm.LightGreen(string(r.Winner)))
	}
	for _, s := range st.Scoreboard {
		info += pterm.Sprintfln("  %s off by %d", s.Peer, s.Error)
	}
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightGreen("|RESULT|")).WithTitleTopCenter().Sprint(info)}, true
}

func printState(st quiz.RoundState, self quiz.PeerID) {
	panels := [][]pterm.Panel{{getRoundPanel(st, self), getLeaderboardPanel(st, self)}}
	if result, ok := getResultPanel(st); ok {
		panels = append(panels, []pterm.Panel{result})
	}
	_ = pterm.DefaultPanel.WithPanels(panels).Render()
}
